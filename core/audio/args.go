package audio

import (
	"strconv"
	"strings"
)

// PipeOutput makes ffmpeg write the encoded stream to stdout.
const PipeOutput = "pipe:1"

// buildArgs assembles one ffmpeg invocation: decode input, drop video, apply
// trim and filters, keep the source tags, encode MP3 into output.
func buildArgs(input string, e EditSpec, output, bitrate string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

	if isRemote(input) {
		// 远程输入断线重连
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5")
	}
	if e.Trim != nil {
		args = append(args, "-ss", seconds(e.Trim.Start), "-to", seconds(e.Trim.End))
	}
	args = append(args, "-i", input, "-vn")

	if chain := filterChain(e); chain != "" {
		args = append(args, "-af", chain)
	}

	if bitrate == "" {
		bitrate = "192k"
	}
	args = append(args,
		"-map_metadata", "0",
		"-id3v2_version", "3",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3")
	if output != PipeOutput {
		args = append(args, "-y")
	}
	return append(args, output)
}

// filterChain joins volume and atempo. Identity factors are left out.
func filterChain(e EditSpec) string {
	var filters []string
	if e.Volume != nil && *e.Volume != 1 {
		filters = append(filters, "volume="+factor(*e.Volume))
	}
	if e.Speed != nil && *e.Speed != 1 {
		filters = append(filters, "atempo="+factor(*e.Speed))
	}
	return strings.Join(filters, ",")
}

func isRemote(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func factor(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
