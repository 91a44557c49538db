package capture

import (
	"path/filepath"
	"strconv"
	"strings"
)

const defaultFFmpegPath = "ffmpeg"

// encoderArgs builds the ffmpeg argument list for the given output file.
// Input is always a PNG image sequence on stdin in presentation order.
// GIF output goes through a two-pass palette filter; everything else falls
// back to an H.264 MP4.
func encoderArgs(outputPath string, fps int, verbose bool) []string {
	args := []string{}
	if !verbose {
		args = append(args, "-v", "error")
	}
	args = append(args, "-y")

	if strings.EqualFold(filepath.Ext(outputPath), ".gif") {
		args = append(args,
			"-f", "image2pipe",
			"-vcodec", "png",
			"-framerate", strconv.Itoa(fps),
			"-i", "-",
			"-vf", "split [a][b];[b]palettegen=stats_mode=diff[p];[a][p]paletteuse=new=1",
			"-c:v", "gif",
			"-loop", "0",
			outputPath,
		)
		return args
	}

	args = append(args,
		"-f", "image2pipe",
		"-vcodec", "png",
		"-r", strconv.Itoa(fps),
		"-i", "-",
		"-an",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outputPath,
	)
	return args
}
