package main

import (
	"fmt"
	"os"

	"github.com/havenstay/leaseflow-backend/internal/app"
	"github.com/havenstay/leaseflow-backend/internal/platform/envutil"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	port := envutil.String("PORT", "8080")
	a.Log.Info("Server listening", "port", port)
	if err := a.Run(":" + port); err != nil {
		a.Log.Error("Server failed", "error", err)
	}
}
