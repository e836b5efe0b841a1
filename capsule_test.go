package capsule_test

import (
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	capsule "github.com/dig-network/digcap"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()

	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)

	return buf
}

func TestCreateExtract_RoundTrip_Unencrypted(t *testing.T) {
	dir := t.TempDir()
	data := []byte("hello, capsule pipeline")

	set, err := capsule.CreateFromBuffer(context.Background(), data, dir, false, nil, capsule.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, set.ID)
	require.Len(t, set.Capsules, set.Metadata.CapsuleCount)

	got, err := capsule.ExtractToBuffer(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCreateExtract_RoundTrip_Encrypted(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(t, 5000)
	key := []byte("a strong passphrase")

	_, err := capsule.CreateFromBuffer(context.Background(), data, dir, false, key, capsule.Options{})
	require.NoError(t, err)

	got, err := capsule.ExtractToBuffer(context.Background(), dir, key)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCreateExtract_RoundTrip_PostPad(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(t, 9000)
	key := []byte("another passphrase")

	_, err := capsule.CreateFromBuffer(context.Background(), data, dir, true, key, capsule.Options{})
	require.NoError(t, err)

	got, err := capsule.ExtractToBuffer(context.Background(), dir, key)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCreateExtract_EmptyInput(t *testing.T) {
	dir := t.TempDir()

	set, err := capsule.CreateFromBuffer(context.Background(), nil, dir, false, nil, capsule.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, set.Metadata.CapsuleCount)

	got, err := capsule.ExtractToBuffer(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCreateExtract_AboveSmallestBucketUsesNextBucket(t *testing.T) {
	dir := t.TempDir()
	// Larger than the smallest bucket, so the planner moves up to the 1 MiB
	// bucket and the whole input still fits in one capsule.
	data := randomBytes(t, 300000)

	set, err := capsule.CreateFromBuffer(context.Background(), data, dir, false, nil, capsule.Options{})
	require.NoError(t, err)
	require.Equal(t, []int64{1048576}, set.Metadata.CapsuleSizes)

	got, err := capsule.ExtractToBuffer(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestExtractWithWrongKeyFails(t *testing.T) {
	dir := t.TempDir()

	_, err := capsule.CreateFromBuffer(context.Background(), []byte("secret payload"), dir, false, []byte("correct key"), capsule.Options{})
	require.NoError(t, err)

	_, err = capsule.ExtractToBuffer(context.Background(), dir, []byte("wrong key"))
	require.True(t, errors.Is(err, capsule.ErrDecryptionFailed))
}

func TestExtractMissingKeyOnEncryptedSetFails(t *testing.T) {
	dir := t.TempDir()

	_, err := capsule.CreateFromBuffer(context.Background(), []byte("secret payload"), dir, false, []byte("a key"), capsule.Options{})
	require.NoError(t, err)

	_, err = capsule.ExtractToBuffer(context.Background(), dir, nil)
	require.True(t, errors.Is(err, capsule.ErrDecryptionFailed))
}

func TestCreateFromFile_ToFile_RoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	inputPath := filepath.Join(srcDir, "input.bin")
	data := randomBytes(t, 4096)
	require.NoError(t, os.WriteFile(inputPath, data, 0o644))

	_, err := capsule.CreateFromFile(context.Background(), inputPath, outDir, false, nil, capsule.Options{})
	require.NoError(t, err)

	outputPath := filepath.Join(srcDir, "output.bin")
	err = capsule.ExtractToFile(context.Background(), outDir, outputPath, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCreateFromFile_MissingInput(t *testing.T) {
	_, err := capsule.CreateFromFile(context.Background(), "/no/such/path", t.TempDir(), false, nil, capsule.Options{})
	require.True(t, errors.Is(err, capsule.ErrInputMissing))
}

func TestCreate_NameCollisionWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	data := []byte("fixed content")

	_, err := capsule.CreateFromBuffer(context.Background(), data, dir, false, nil, capsule.Options{})
	require.NoError(t, err)

	_, err = capsule.CreateFromBuffer(context.Background(), data, dir, false, nil, capsule.Options{})
	require.True(t, errors.Is(err, capsule.ErrNameCollision))
}

func TestCreate_OverwriteAllowsRewrite(t *testing.T) {
	dir := t.TempDir()
	data := []byte("fixed content")

	_, err := capsule.CreateFromBuffer(context.Background(), data, dir, false, nil, capsule.Options{})
	require.NoError(t, err)

	_, err = capsule.CreateFromBuffer(context.Background(), data, dir, false, nil, capsule.Options{Overwrite: true})
	require.NoError(t, err)
}

func TestCreate_DeterministicSetIDAndMetadata(t *testing.T) {
	data := randomBytes(t, 20000)

	dirA := t.TempDir()
	dirB := t.TempDir()

	setA, err := capsule.CreateFromBuffer(context.Background(), data, dirA, false, nil, capsule.Options{})
	require.NoError(t, err)

	setB, err := capsule.CreateFromBuffer(context.Background(), data, dirB, false, nil, capsule.Options{})
	require.NoError(t, err)

	require.Equal(t, setA.ID, setB.ID)
	require.Equal(t, setA.Metadata.CapsuleCount, setB.Metadata.CapsuleCount)
	require.Equal(t, setA.Metadata.CapsuleSizes, setB.Metadata.CapsuleSizes)
	require.Equal(t, setA.Metadata.OriginalSize, setB.Metadata.OriginalSize)
}

func TestLoadSet_MetadataMatchesCreatedSet(t *testing.T) {
	dir := t.TempDir()

	created, err := capsule.CreateFromBuffer(context.Background(), randomBytes(t, 500000), dir, false, nil, capsule.Options{})
	require.NoError(t, err)

	loaded, err := capsule.LoadSet(dir)
	require.NoError(t, err)

	if diff := cmp.Diff(created.Metadata, loaded.Metadata); diff != "" {
		t.Fatalf("metadata mismatch between create and reload (-created +loaded):\n%s", diff)
	}
}

func TestLoadSet_ThenValidateConsensusParameters(t *testing.T) {
	dir := t.TempDir()

	_, err := capsule.CreateFromBuffer(context.Background(), randomBytes(t, 1000), dir, false, nil, capsule.Options{})
	require.NoError(t, err)

	set, err := capsule.LoadSet(dir)
	require.NoError(t, err)
	require.NoError(t, capsule.ValidateConsensusParameters(set))
}

func TestValidateConsensusParameters_RejectsWrongConsensusVersion(t *testing.T) {
	dir := t.TempDir()

	_, err := capsule.CreateFromBuffer(context.Background(), randomBytes(t, 1000), dir, false, nil, capsule.Options{})
	require.NoError(t, err)

	set, err := capsule.LoadSet(dir)
	require.NoError(t, err)

	set.Metadata.ConsensusVersion = "not-a-real-version"

	err = capsule.ValidateConsensusParameters(set)
	require.True(t, errors.Is(err, capsule.ErrConsensusViolation))
}

func TestDescribeSet_ReportsMissingCapsuleFile(t *testing.T) {
	dir := t.TempDir()

	_, err := capsule.CreateFromBuffer(context.Background(), randomBytes(t, 300000), dir, false, nil, capsule.Options{})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".capsule" {
			require.NoError(t, os.Remove(filepath.Join(dir, e.Name())))
			break
		}
	}

	report, err := capsule.DescribeSet(dir)
	require.NoError(t, err)
	require.False(t, report.CountMatches)
	require.NotEmpty(t, report.Problems)
}

func TestIsValidCapsuleFile(t *testing.T) {
	dir := t.TempDir()

	_, err := capsule.CreateFromBuffer(context.Background(), []byte("payload"), dir, false, nil, capsule.Options{})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var capsulePath string

	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".capsule" {
			capsulePath = filepath.Join(dir, e.Name())
			break
		}
	}

	require.NotEmpty(t, capsulePath)
	require.True(t, capsule.IsValidCapsuleFile(capsulePath))

	require.False(t, capsule.IsValidCapsuleFile(filepath.Join(dir, "does-not-exist.capsule")))

	corrupt := filepath.Join(dir, "corrupt.capsule")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a capsule file"), 0o644))
	require.False(t, capsule.IsValidCapsuleFile(corrupt))
}

func TestOverheadEstimate_PositiveForRealInputs(t *testing.T) {
	est := capsule.OverheadEstimate(100000, 1)
	require.Greater(t, est, 0.0)
}

func TestListBucketSizes_AscendingAndMatchesPlan(t *testing.T) {
	sizes := capsule.ListBucketSizes()
	require.Len(t, sizes, 5)

	for i := 1; i < len(sizes); i++ {
		require.Less(t, sizes[i-1], sizes[i])
	}
}

func TestConsensusTag(t *testing.T) {
	require.Equal(t, "DIG_CAPSULE_V1", capsule.ConsensusTag())
}

func TestCreate_ContextCancellationStopsMidStream(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := capsule.CreateFromBuffer(ctx, randomBytes(t, 1000), dir, false, nil, capsule.Options{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExtract_TamperedCapsuleFailsChecksum(t *testing.T) {
	dir := t.TempDir()

	_, err := capsule.CreateFromBuffer(context.Background(), []byte("content that must survive"), dir, false, nil, capsule.Options{})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var capsulePath string

	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".capsule" {
			capsulePath = filepath.Join(dir, e.Name())
			break
		}
	}

	raw, err := os.ReadFile(capsulePath)
	require.NoError(t, err)

	// Flip a byte well past the header so the CRC-protected header itself
	// still parses but the body payload is corrupted.
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(capsulePath, raw, 0o644))

	_, err = capsule.ExtractToBuffer(context.Background(), dir, nil)
	require.Error(t, err)
}

func TestExtractToBuffer_NoSidecarFails(t *testing.T) {
	dir := t.TempDir()

	_, err := capsule.ExtractToBuffer(context.Background(), dir, nil)
	require.Error(t, err)
}
