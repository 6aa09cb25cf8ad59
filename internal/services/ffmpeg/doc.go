// Package ffmpeg implements audio extraction from video containers.
package ffmpeg
