package render

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certchain/internal/platform/metrics"
	dErrors "certchain/pkg/domain-errors"
)

func TestExport_UnmountedTarget(t *testing.T) {
	e := NewExporter()

	for name, target := range map[string]*Target{"nil": nil, "empty": Mount(nil)} {
		t.Run(name, func(t *testing.T) {
			artifact, err := e.Export(context.Background(), target)
			assert.Nil(t, artifact)
			assert.ErrorIs(t, err, ErrRenderTargetUnavailable)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeRenderUnavailable))
		})
	}
}

func TestExport_Document(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := NewExporter(WithMetrics(m))

	artifact, err := e.Export(context.Background(), Mount(Compose(sampleRecord(), WithClock(fixedClock))))
	require.NoError(t, err)

	assert.Equal(t, "Jane_Doe_Certificate.pdf", artifact.Name)
	assert.Equal(t, "CERT-10234", artifact.CertificateID)
	assert.True(t, bytes.HasPrefix(artifact.PDF, []byte("%PDF-")))

	img, err := png.Decode(bytes.NewReader(artifact.PNG))
	require.NoError(t, err)
	assert.Equal(t, CanvasWidth*DefaultScale, img.Bounds().Dx())
	assert.Equal(t, CanvasHeight*DefaultScale, img.Bounds().Dy())

	want, err := ContentID(artifact.PDF)
	require.NoError(t, err)
	assert.Equal(t, want, artifact.CID)
	assert.Equal(t, uint64(1), artifact.CID.Version())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArtifactsExported))
}

func TestExport_Deterministic(t *testing.T) {
	e := NewExporter(WithScale(1))
	a := sampleRecord()
	b := a.Clone()

	first, err := e.Export(context.Background(), Mount(Compose(a, WithClock(fixedClock))))
	require.NoError(t, err)
	second, err := e.Export(context.Background(), Mount(Compose(b, WithClock(fixedClock))))
	require.NoError(t, err)

	assert.Equal(t, first.PNG, second.PNG)
	assert.Equal(t, first.PDF, second.PDF)
	assert.Equal(t, first.CID, second.CID)

	b.Grade = "Pass"
	third, err := e.Export(context.Background(), Mount(Compose(b, WithClock(fixedClock))))
	require.NoError(t, err)
	assert.NotEqual(t, first.PNG, third.PNG)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	e := NewExporter(WithScale(1))
	artifact, err := e.Export(context.Background(), Mount(Compose(sampleRecord(), WithClock(fixedClock))))
	require.NoError(t, err)

	path, err := WriteFile(dir, artifact)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Jane_Doe_Certificate.pdf"), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, artifact.PDF, written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFile_NothingToWrite(t *testing.T) {
	dir := t.TempDir()

	_, err := WriteFile(dir, nil)
	assert.ErrorIs(t, err, ErrRenderTargetUnavailable)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
