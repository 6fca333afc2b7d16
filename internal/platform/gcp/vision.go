package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

// MeterOCR reads the digits off a utility meter photo. Confidence is the
// mean block confidence of the detected text, 0 when the provider does
// not report one.
type MeterOCR interface {
	DetectText(ctx context.Context, img []byte) (text string, confidence float64, err error)
	Close() error
}

type visionOCR struct {
	log     *logger.Logger
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
}

func NewVisionOCR(baseLog *logger.Logger) (MeterOCR, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	client, err := vision.NewImageAnnotatorClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionOCR{
		log:     baseLog.With("service", "gcp.MeterOCR"),
		client:  client,
		timeout: 30 * time.Second,
	}, nil
}

func (s *visionOCR) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *visionOCR) DetectText(ctx context.Context, img []byte) (string, float64, error) {
	if len(img) == 0 {
		return "", 0, fmt.Errorf("%w: empty image", pkgerr.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
			},
		}},
	}
	resp, err := s.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: vision BatchAnnotateImages: %v", pkgerr.ErrExternalService, err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", 0, nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", 0, fmt.Errorf("%w: vision annotate: %s", pkgerr.ErrExternalService, r0.Error.Message)
	}

	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return "", 0, nil
	}

	var (
		sum float64
		n   int
	)
	for _, pg := range fta.Pages {
		if pg == nil {
			continue
		}
		for _, b := range pg.Blocks {
			if b == nil {
				continue
			}
			sum += float64(b.Confidence)
			n++
		}
	}
	conf := 0.0
	if n > 0 {
		conf = sum / float64(n)
	}
	return strings.TrimSpace(fta.Text), conf, nil
}
