package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DeliveryStatus mirrors the statuses the gateway understands.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// SendRequest is the payload the gateway pushes for one message.
type SendRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	Recipient string `json:"recipient" binding:"required"`
	Sender    string `json:"sender"`
	Content   string `json:"content" binding:"required"`
	Priority  string `json:"priority"`
}

// SendResponse is what the gateway reads back after a push.
type SendResponse struct {
	MessageID    string         `json:"message_id"`
	Status       DeliveryStatus `json:"status"`
	DeliveredAt  *time.Time     `json:"delivered_at,omitempty"`
	ProviderCode string         `json:"provider_code,omitempty"`
	ErrorMsg     string         `json:"error_message,omitempty"`
	Provider     string         `json:"provider"`
	ProcessedAt  time.Time      `json:"processed_at"`
}

// StatusResponse answers a delivery status lookup.
type StatusResponse struct {
	MessageID    string         `json:"message_id"`
	Status       DeliveryStatus `json:"status"`
	DeliveredAt  *time.Time     `json:"delivered_at,omitempty"`
	ProviderCode string         `json:"provider_code,omitempty"`
	ErrorMsg     string         `json:"error_message,omitempty"`
	Provider     string         `json:"provider"`
}

// HealthResponse reports carrier availability.
type HealthResponse struct {
	Status       string    `json:"status"`
	Provider     string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

// MockProvider simulates an upstream SMS carrier: configurable delivery
// rate, random latency and a stable provider name for the lifetime of
// the process.
type MockProvider struct {
	deliveryRate float64
	syncDelivery float64
	minDelay     time.Duration
	maxDelay     time.Duration
	name         string
	rng          *rand.Rand
}

func NewMockProvider(name string, deliveryRate, syncDelivery float64, minDelay, maxDelay time.Duration) *MockProvider {
	if name == "" {
		name = "mock-" + uuid.New().String()[:8]
	}
	return &MockProvider{
		deliveryRate: deliveryRate,
		syncDelivery: syncDelivery,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		name:         name,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// simulateSend works through one delivery attempt. Most accepted
// messages come back "sent" with delivery confirmed later over the
// status endpoint; a configurable share delivers synchronously.
func (m *MockProvider) simulateSend(req *SendRequest) *SendResponse {
	delay := m.randomDelay()
	if req.Priority == "high" {
		delay = delay / 2
	}
	time.Sleep(delay)

	response := &SendResponse{
		MessageID:   req.MessageID,
		Provider:    m.name,
		ProcessedAt: time.Now(),
	}

	if !m.shouldSucceed() {
		response.Status = StatusFailed
		response.ProviderCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ProviderCode)

		log.Warn().
			Str("message_id", req.MessageID).
			Str("recipient", req.Recipient).
			Str("provider_code", response.ProviderCode).
			Msg("delivery failed")
		return response
	}

	if m.rng.Float64() < m.syncDelivery {
		now := time.Now()
		response.Status = StatusDelivered
		response.DeliveredAt = &now
	} else {
		response.Status = StatusSent
	}

	log.Info().
		Str("message_id", req.MessageID).
		Str("recipient", req.Recipient).
		Str("status", string(response.Status)).
		Dur("delay", delay).
		Msg("message accepted")

	return response
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockProvider) randomErrorCode() string {
	errorCodes := []string{
		"INVALID_NUMBER",
		"NETWORK_ERROR",
		"TIMEOUT",
		"BLOCKED",
		"INVALID_CONTENT",
		"CARRIER_REJECTED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockProvider) errorMessage(code string) string {
	messages := map[string]string{
		"INVALID_NUMBER":   "The phone number is invalid or not in service",
		"NETWORK_ERROR":    "Network connectivity issue with the carrier",
		"TIMEOUT":          "Delivery timed out",
		"BLOCKED":          "The recipient has blocked messages",
		"INVALID_CONTENT":  "Message content violates carrier policies",
		"CARRIER_REJECTED": "Carrier rejected the message",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

// Handler struct holds the mock provider and routes
type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

// Send handles single message push requests from the gateway.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("message_id", req.MessageID).
		Str("recipient", req.Recipient).
		Str("priority", req.Priority).
		Msg("received send request")

	response := h.provider.simulateSend(&req)

	statusCode := http.StatusOK
	if response.Status == StatusFailed {
		statusCode = http.StatusAccepted // accepted but delivery failed
	}

	c.JSON(statusCode, response)
}

// GetStatus handles delivery status lookups.
func (h *Handler) GetStatus(c *gin.Context) {
	messageID := c.Param("message_id")

	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "message_id is required",
		})
		return
	}

	time.Sleep(50 * time.Millisecond)

	response := StatusResponse{
		MessageID: messageID,
		Provider:  h.provider.name,
	}

	if h.provider.shouldSucceed() {
		now := time.Now()
		response.Status = StatusDelivered
		response.DeliveredAt = &now
	} else {
		response.Status = StatusFailed
		response.ProviderCode = "TIMEOUT"
		response.ErrorMsg = "Delivery timed out"
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles health probe requests from the gateway.
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.provider.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Carrier temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		Provider:     h.provider.name,
		Timestamp:    time.Now(),
		DeliveryRate: h.provider.deliveryRate,
	})
}

// UpdateConfig allows changing provider behavior at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.provider.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.provider.deliveryRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sms/send", handler.Send)
		v1.GET("/sms/status/:message_id", handler.GetStatus)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// The gateway probes the root health path.
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	name := getEnv("PROVIDER_NAME", "")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	syncDelivery := getEnvFloat("SYNC_DELIVERY_RATE", 0.2)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Str("name", name).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("starting mock SMS provider")

	provider := NewMockProvider(name, deliveryRate, syncDelivery, minDelay, maxDelay)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
