package merge

import (
	"strconv"
)

// Strategy says which track is extended to match the other.
type Strategy int

const (
	// PadAudio keeps the video as is and pads the audio with silence.
	PadAudio Strategy = iota
	// PadVideo freezes the last video frame until the audio ends.
	PadVideo
)

func (s Strategy) String() string {
	if s == PadVideo {
		return "pad_video"
	}
	return "pad_audio"
}

// DefaultFrameRate is used when the video's rate cannot be probed.
const DefaultFrameRate = "30"

// Plan holds the measured durations and the chosen strategy.
type Plan struct {
	VideoDuration float64
	AudioDuration float64
	FinalDuration float64
	FrameRate     string
	Strategy      Strategy
}

// ChooseStrategy pads the video only when the audio is strictly longer.
func ChooseStrategy(video, audio float64) Strategy {
	if audio > video {
		return PadVideo
	}
	return PadAudio
}

func NewPlan(video, audio float64, frameRate string) Plan {
	if frameRate == "" {
		frameRate = DefaultFrameRate
	}
	return Plan{
		VideoDuration: video,
		AudioDuration: audio,
		FinalDuration: max(video, audio),
		FrameRate:     frameRate,
		Strategy:      ChooseStrategy(video, audio),
	}
}

// Args builds the ffmpeg argument list for p.
func (p Plan) Args(videoPath, audioPath, outputPath string) []string {
	args := []string{"-i", videoPath, "-i", audioPath}
	if p.Strategy == PadVideo {
		pad := seconds(p.AudioDuration - p.VideoDuration)
		args = append(args,
			"-filter_complex",
			"[0:v]tpad=stop_mode=clone:stop_duration="+pad+"[extended_video];"+
				"[extended_video]fps="+p.FrameRate+"[final_video]",
			"-map", "[final_video]",
			"-map", "1:a",
			"-c:v", "libx264",
		)
	} else {
		args = append(args,
			"-c:v", "copy",
			"-filter_complex", "[1:a]apad[padded_audio]",
			"-map", "0:v",
			"-map", "[padded_audio]",
		)
	}
	return append(args,
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", "44100",
		"-ac", "2",
		"-t", seconds(p.FinalDuration),
		"-avoid_negative_ts", "make_zero",
		"-fflags", "+genpts",
		"-y",
		outputPath,
	)
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
