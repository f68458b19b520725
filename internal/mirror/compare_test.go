package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMtimeDetector(t *testing.T) {
	d := MtimeDetector{}
	f := &FileInfo{RelPath: "a", ModTime: 100, Size: 10}

	assert.True(t, d.ShouldTransfer(nil, f), "untracked file")
	assert.True(t, d.ShouldTransfer(&Entry{ModTime: 99, Size: 10}, f), "newer mtime")
	assert.False(t, d.ShouldTransfer(&Entry{ModTime: 100, Size: 10}, f), "same mtime")
	assert.False(t, d.ShouldTransfer(&Entry{ModTime: 100, Size: 99}, f), "size ignored")
	assert.False(t, d.ShouldTransfer(&Entry{ModTime: 200, Size: 10}, f), "mtime rolled back")
}

func TestSizeDetector(t *testing.T) {
	d := SizeDetector{}
	f := &FileInfo{RelPath: "a", ModTime: 100, Size: 10}

	assert.True(t, d.ShouldTransfer(nil, f), "untracked file")
	assert.True(t, d.ShouldTransfer(&Entry{ModTime: 100, Size: 9}, f), "grew")
	assert.True(t, d.ShouldTransfer(&Entry{ModTime: 100, Size: 11}, f), "shrank")
	assert.False(t, d.ShouldTransfer(&Entry{ModTime: 1, Size: 10}, f), "mtime ignored")
}

func TestNewChangeDetector(t *testing.T) {
	tests := []struct {
		method string
		want   ChangeDetector
	}{
		{"", MtimeDetector{}},
		{CompareMtime, MtimeDetector{}},
		{CompareSize, SizeDetector{}},
	}
	for _, tt := range tests {
		d, err := NewChangeDetector(tt.method)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d)
	}

	_, err := NewChangeDetector("sha1")
	assert.ErrorIs(t, err, ErrConfig)
}
