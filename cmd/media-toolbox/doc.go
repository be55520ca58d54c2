// Command media-toolbox runs the toolbox conversions from the command line.
//
// Each subcommand mirrors one tool page of the web interface and applies the
// same intake rules: files over the tool's size limit or outside its accepted
// types are skipped with a message, and the remaining files are processed in
// the order given.
//
// Usage:
//
//	media-toolbox pdf-optimize [--quality low|medium|high] FILE
//	media-toolbox audio-merge [--format mp3|wav|ogg|m4a] FILE FILE...
//	media-toolbox audio-split [--format ...] --segment START-END... FILE
//	media-toolbox image-convert [--format jpeg|png|webp] [--quality N] FILE
//	media-toolbox video-convert [--format mp4|webm|avi|mov] [--quality ...] FILE
//	media-toolbox version
//
// Results are written to the directory named by --out (default: the current
// directory) using the same derived names as downloads, e.g.
// "report_optimized.pdf".
//
// Progress is drawn as a bar when stderr is a terminal and as one line per
// status change otherwise.
//
// # Environment
//
// The command reads the same configuration as the server:
//
//   - CONFIG_FILE: YAML, TOML or JSON file with ffmpeg_path, work_dir and limits_mb
//   - FFMPEG_PATH: ffmpeg binary (default: ffmpeg)
//   - WORK_DIR: parent of the engine scratch directories
//   - LOG_LEVEL: debug, info, warn or error
//
// The --ffmpeg and --work-dir flags take precedence over both.
package main
