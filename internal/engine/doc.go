// Package engine defines the transcoding engine capability and its FFmpeg
// implementation.
//
// An engine owns a private, flat filesystem. Callers stage inputs with
// WriteFile, run one invocation with Exec, collect outputs with ReadFile and
// clean up with DeleteFile:
//
//	eng := engine.NewFFmpeg(engine.FFmpegConfig{WorkDir: "/tmp/media-toolbox"})
//	if err := eng.Load(ctx); err != nil {
//	    // *engine.LoadError names the failed stage
//	}
//	defer eng.Close()
//
//	_ = eng.WriteFile("input.mp3", data)
//	_ = eng.Exec(ctx, []string{"-i", "input.mp3", "output.ogg"})
//	out, _ := eng.ReadFile("output.ogg")
//
// The FFmpeg engine requires ffmpeg to be installed. Progress is reported as a
// fraction of the expected output duration through OnProgress; log lines are
// relayed through OnLog.
package engine
