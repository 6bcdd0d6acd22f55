package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeAudible()
	c.normalizeEncoding()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir()
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
}

func (c *Config) normalizeAudible() {
	c.Audible.ActivationBytes = NormalizeActivationBytes(c.Audible.ActivationBytes)
	if c.Audible.ActivationBytes == "" {
		if value, ok := os.LookupEnv(ActivationBytesEnv); ok {
			c.Audible.ActivationBytes = NormalizeActivationBytes(value)
		}
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Codec = strings.TrimSpace(c.Encoding.Codec)
	if c.Encoding.Codec == "" {
		c.Encoding.Codec = defaultCodec
	}
	c.Encoding.BitRate = strings.TrimSpace(c.Encoding.BitRate)
	c.Encoding.Extension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Encoding.Extension)), ".")
	if c.Encoding.Extension == "" {
		c.Encoding.Extension = defaultExtension
	}
	if c.Encoding.ID3v2Version == 0 {
		c.Encoding.ID3v2Version = defaultID3v2Version
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// NormalizeActivationBytes trims and lowercases an activation key.
func NormalizeActivationBytes(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
