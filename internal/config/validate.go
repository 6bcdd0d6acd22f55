package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAudible(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAudible() error {
	if c.Audible.ActivationBytes == "" {
		return nil
	}
	if err := ValidateActivationBytes(c.Audible.ActivationBytes); err != nil {
		return fmt.Errorf("audible.activation_bytes: %w", err)
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if strings.ContainsAny(c.Encoding.Extension, `/\`) {
		return errors.New("encoding.extension must not contain path separators")
	}
	switch c.Encoding.ID3v2Version {
	case 3, 4:
	default:
		return fmt.Errorf("encoding.id3v2_version must be 3 or 4, got %d", c.Encoding.ID3v2Version)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

// ValidateActivationBytes checks that an activation key is exactly eight
// hexadecimal characters.
func ValidateActivationBytes(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("activation bytes are required")
	}
	if len(value) != 8 {
		return fmt.Errorf("activation bytes must be 8 hex characters, got %d", len(value))
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return fmt.Errorf("activation bytes contain non-hex character %q", r)
		}
	}
	return nil
}
