package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"

	defaultImageSize = 1024
	minImageSize     = 256
	defaultSectors   = 8
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     *uuid.UUID // Latest session when nil
	OutputFile    string
	Format        ImageFormat
	Theme         ColorTheme
	Size          int // Image width and height in pixels
	Sectors       int // Azimuth sectors in the summary
	MaxMagnitude  *float64
	MinMagnitude  *float64
	Verbose       bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:  ImagePNG,
		Theme:   ClassicTheme,
		Size:    defaultImageSize,
		Sectors: defaultSectors,
	}
}

func NewConfigFromCLI() (*Config, error) {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	return parseConfig(fs, os.Args[1:])
}

func parseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var sessionID, imageFormat, theme string
	var minMagnitude, maxMagnitude float64
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.StringVar(&sessionID, "s", "", "Session ID (defaults to the latest session)")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(ClassicTheme), "Color theme. [classic, grayscale, jungle, thermal, marine]")
	fs.IntVar(&c.Size, "size", defaultImageSize, "Image width and height in pixels")
	fs.IntVar(&c.Sectors, "sectors", defaultSectors, "Number of azimuth sectors in the summary")
	fs.Float64Var(&minMagnitude, "min-magnitude", 0, "Define a manual minimum magnitude (format nn.n)")
	fs.Float64Var(&maxMagnitude, "max-magnitude", 0, "Define a manual maximum magnitude (format nn.n)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as the distance scale and legend")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	c.Theme = ColorTheme(strings.ToLower(theme))

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "min-magnitude" {
			c.MinMagnitude = &minMagnitude
		}
		if f.Name == "max-magnitude" {
			c.MaxMagnitude = &maxMagnitude
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validThemes[c.Theme]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	} else if c.Size < minImageSize {
		err = fmt.Errorf("image size must be at least %d pixels", minImageSize)
	} else if c.Sectors < 1 {
		err = errors.New("sector count must be positive")
	} else if c.MinMagnitude != nil && c.MaxMagnitude != nil && *c.MinMagnitude >= *c.MaxMagnitude {
		err = errors.New("minimum magnitude must be below maximum magnitude")
	}

	if err == nil && sessionID != "" {
		var id uuid.UUID
		if id, err = uuid.Parse(sessionID); err != nil {
			err = fmt.Errorf("invalid session id: %w", err)
		} else {
			c.SessionID = &id
		}
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	if !strings.HasSuffix(strings.ToLower(c.OutputFile), "."+string(c.Format)) {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	return c, nil
}
