// Package probe inspects media files with ffprobe.
//
// Only two facts matter to encarne: the codec of the primary video stream
// (with the encoder tag, when the muxer recorded one) and the duration. A
// probe that fails is reported as ErrProbeFailed; callers treat the codec as
// "unknown" and carry on.
package probe
