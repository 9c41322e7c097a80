// Package command builds the ffmpeg invocation for an encode.
//
// Build returns a structured argument vector; Join flattens it into a
// POSIX-quoted string only at the queue boundary, so file names with
// spaces, quotes or shell metacharacters are passed through verbatim.
//
//	args := command.Build(cfg, "/srv/movies/Heat (1995).mkv", "/home/me/Heat (1995)-x265.mkv")
//	queue.Add(ctx, command.Join(args), "/srv/movies")
package command
