package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden, "Should ignore hidden files by default")
	assert.Equal(t, time.Second, opts.SettleDelay)
	assert.Contains(t, opts.IgnorePatterns, ".DS_Store")
	assert.Contains(t, opts.IgnorePatterns, "*.part")
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		IgnoreHidden:   false,
		SettleDelay:    200 * time.Millisecond,
		IgnorePatterns: []string{"*.bak"},
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden, "Custom ignore hidden should be preserved")
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"hidden file", "/raw/.hidden.jpg", true},
		{"DS_Store", "/raw/.DS_Store", true},
		{"tmp file", "/raw/file.tmp", true},
		{"partial download", "/raw/file.jpg.crdownload", true},
		{"jpeg", "/raw/1700000000.jpg", false},
		{"no extension", "/raw/1700000000.img", false},
		{"hidden parent is irrelevant", "/home/.cache/raw/pic.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, opts.shouldIgnore(tt.path))
		})
	}
}

func TestOptions_ShouldIgnore_NoIgnoreHidden(t *testing.T) {
	opts := Options{IgnorePatterns: []string{}}
	opts.setDefaults()

	assert.False(t, opts.shouldIgnore("/raw/.hidden"), "Should not ignore hidden when disabled")
	assert.False(t, opts.shouldIgnore("/raw/file.tmp"))
}
