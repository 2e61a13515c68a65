package main

import (
	"bytes"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerwire/shared/config"
	"github.com/ledgerwire/shared/middleware"
)

func main() {
	cfg := config.Load()

	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.TraceMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "gateway"})
	})

	// wallet-service routes (auth unauthenticated, balance requires a token)
	router.POST("/api/auth/request-otp", proxyTo(cfg.WalletServiceURL))
	router.POST("/api/auth/verify-otp", proxyTo(cfg.WalletServiceURL))
	router.GET("/api/wallet/balance", middleware.AuthMiddleware(), proxyTo(cfg.WalletServiceURL))

	// payment-service routes
	router.POST("/api/payments/send", middleware.AuthMiddleware(), proxyTo(cfg.PaymentServiceURL))
	router.POST("/api/wallet/withdraw", middleware.AuthMiddleware(), proxyTo(cfg.PaymentServiceURL))
	router.GET("/api/payments/history", middleware.AuthMiddleware(), proxyTo(cfg.PaymentServiceURL))

	log.Printf("gateway starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// proxyTo forwards a request verbatim to an upstream service, stamping the
// authenticated user and trace ID onto it so every downstream service sees
// X-User-Id and X-Trace-Id, minting the trace ID at the edge if the client
// didn't supply one.
func proxyTo(serviceURL string) gin.HandlerFunc {
	client := &http.Client{}

	return func(c *gin.Context) {
		targetURL := serviceURL + c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			targetURL += "?" + c.Request.URL.RawQuery
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		req, err := http.NewRequest(c.Request.Method, targetURL, bytes.NewBuffer(bodyBytes))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create request"})
			return
		}

		for key, values := range c.Request.Header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}

		if userID, exists := c.Get("userId"); exists {
			req.Header.Set("X-User-ID", userID.(string))
		}
		traceID := c.GetHeader("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		req.Header.Set("X-Trace-Id", traceID)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("error proxying request: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"message": "service unavailable"})
			return
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to read response"})
			return
		}

		for key, values := range resp.Header {
			for _, value := range values {
				c.Header(key, value)
			}
		}
		c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	}
}
