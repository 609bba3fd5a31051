package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainProgress_PrintsQuarterSteps(t *testing.T) {
	var buf bytes.Buffer
	p := newPlainProgress(&buf, "Rendering")

	for _, pct := range []int{0, 10, 24, 30, 40, 60, 99, 100} {
		p.Set(pct)
	}
	p.Describe("Spooling")
	p.Set(5)
	p.Finish()
	p.Finish()

	assert.Equal(t,
		"Rendering: 0%\nRendering: 30%\nRendering: 60%\nRendering: 99%\nRendering: 100%\n"+
			"Spooling: 5%\nSpooling: 100%\n",
		buf.String())
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
}
