// Package ffprobe measures media files with the ffprobe binary.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"scenecast/internal/pkg/command"
)

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("ffprobe: no duration reported")

// Result is the decoded JSON form of an inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Prober runs ffprobe through a command.Runner.
type Prober struct {
	binary string
	run    command.Runner
}

// New returns a Prober. An empty binary means "ffprobe"; a nil runner means
// command.Default.
func New(binary string, run command.Runner) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if run == nil {
		run = command.Default
	}
	return &Prober{binary: binary, run: run}
}

// Inspect decodes format and stream metadata for path.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	res, err := p.run.Run(ctx, "", p.binary,
		"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(res.Stderr))
	}
	var out Result
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return out, nil
}

// Duration reads the container duration using the single-value CSV form.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.run.Run(ctx, "", p.binary,
		"-v", "quiet", "-show_entries", "format=duration", "-of", "csv=p=0", path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w: %s", err, strings.TrimSpace(res.Stderr))
	}
	return parseDuration(res.Stdout)
}

// AudioDuration reads the container duration from ffprobe's JSON output.
func (p *Prober) AudioDuration(ctx context.Context, path string) (float64, error) {
	res, err := p.run.Run(ctx, "", p.binary,
		"-v", "quiet", "-print_format", "json", "-show_entries", "format=duration", path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe audio duration: %w: %s", err, strings.TrimSpace(res.Stderr))
	}
	var out Result
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	return parseDuration(out.Format.Duration)
}

func parseDuration(raw string) (float64, error) {
	v := parseFloat(raw)
	if math.IsNaN(v) || v <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, strings.TrimSpace(raw))
	}
	return v, nil
}

func (r Result) VideoStreamCount() int { return r.countType("video") }

func (r Result) AudioStreamCount() int { return r.countType("audio") }

func (r Result) countType(kind string) int {
	n := 0
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, kind) {
			n++
		}
	}
	return n
}

// DurationSeconds returns the container duration, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	v := parseFloat(r.Format.Duration)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// FrameRate returns the first video stream's frame rate as ffmpeg accepts it
// in an fps filter ("30", "30000/1001"), or "" when unknown.
func (r Result) FrameRate() string {
	for _, s := range r.Streams {
		if !strings.EqualFold(s.CodecType, "video") {
			continue
		}
		for _, rate := range []string{s.AvgFrameRate, s.RFrameRate} {
			if validRate(rate) {
				return strings.TrimSuffix(rate, "/1")
			}
		}
	}
	return ""
}

func validRate(rate string) bool {
	num, den, ok := strings.Cut(strings.TrimSpace(rate), "/")
	if !ok {
		return parseFloat(num) > 0
	}
	return parseFloat(num) > 0 && parseFloat(den) > 0
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return v
	}
	return math.NaN()
}
