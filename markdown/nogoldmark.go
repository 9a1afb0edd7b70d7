//go:build nogoldmark

package markdown

var newFull func() Renderer
