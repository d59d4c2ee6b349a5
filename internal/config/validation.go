package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max output tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max output tokens")

	// ErrInvalidPersistDir indicates the persistence directory is invalid.
	ErrInvalidPersistDir = errors.New("invalid persist directory")

	// ErrInvalidTopK indicates the retrieval top_k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidMaxTurns indicates the session history window is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidAddr indicates the listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")
)

// Retrieval and session bounds.
const (
	MaxRetrievalTopK = 50
	MinMaxTurns      = 2
	MaxMaxTurns      = 1000
)

// Validate checks configuration consistency for offline use (ingest, ask).
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	if c.GenerationModel == "" {
		return ErrInvalidModelName
	}
	if c.EmbedderModel == "" {
		return ErrInvalidEmbedderModel
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v not in [0, 2]", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.MaxOutputTokens)
	}
	if c.PersistDir == "" {
		return ErrInvalidPersistDir
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > MaxRetrievalTopK {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidTopK, c.RetrievalTopK, MaxRetrievalTopK)
	}
	if c.MaxTurns < MinMaxTurns || c.MaxTurns > MaxMaxTurns {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidMaxTurns, c.MaxTurns, MinMaxTurns, MaxMaxTurns)
	}
	return nil
}

// ValidateServe checks configuration for serving mode.
// Superset of Validate: also checks the listen address.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := validateAddr(c.Addr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddr, c.Addr, err)
	}
	return nil
}

// validateAddr validates a host:port listen address.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port is not a number: %q", port)
	}
	if p < 1 || p > 65535 {
		return fmt.Errorf("port %d out of range", p)
	}
	// Empty host means all interfaces, which is acceptable.
	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			// Hostnames are allowed; reject only obviously broken values.
			if host != "localhost" && len(host) > 253 {
				return fmt.Errorf("invalid host %q", host)
			}
		}
	}
	return nil
}
