package padding_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dig-network/digcap/internal/errs"
	"github.com/dig-network/digcap/internal/padding"
)

func TestPadUnpad_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("a"),
		[]byte("the quick brown fox"),
		make([]byte, 1000),
	}

	for _, payload := range payloads {
		envelope, err := padding.Pad(payload, 262144)
		require.NoError(t, err)
		require.Len(t, envelope, 262144)

		got, err := padding.Unpad(envelope, 262144)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}

func TestPad_EnforcesMinimumFloor(t *testing.T) {
	target := 1000
	// Leaves less than the 5% (50 byte) floor once marker+footer overhead is
	// subtracted.
	payload := make([]byte, target-8-10)

	_, err := padding.Pad(payload, target)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrPayloadTooLargeForBucket))
}

func TestPad_PayloadTooLargeForTarget(t *testing.T) {
	_, err := padding.Pad(make([]byte, 300), 100)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrPayloadTooLargeForBucket))
}

func TestUnpad_WrongLength(t *testing.T) {
	_, err := padding.Unpad(make([]byte, 100), 200)
	require.True(t, errors.Is(err, errs.ErrPaddingCorrupt))
}

func TestUnpad_NoMarkerFound(t *testing.T) {
	envelope := make([]byte, 262144)

	_, err := padding.Unpad(envelope, 262144)
	require.True(t, errors.Is(err, errs.ErrPaddingCorrupt))
}

func TestUnpad_DetectsFooterMarkerMismatch(t *testing.T) {
	payload := []byte("hello world")

	envelope, err := padding.Pad(payload, 262144)
	require.NoError(t, err)

	// Corrupt the declared size footer so it no longer agrees with the
	// marker offset found by the forward scan.
	envelope[len(envelope)-1] ^= 0xFF

	_, err = padding.Unpad(envelope, 262144)
	require.True(t, errors.Is(err, errs.ErrPaddingCorrupt))
}

func TestUnpad_IncidentalMarkerRunInPayloadIsNotMistakenForRealMarker(t *testing.T) {
	payload := make([]byte, 100)
	// Plant a 0xFFFFFFFF run inside the payload region itself.
	payload[10], payload[11], payload[12], payload[13] = 0xFF, 0xFF, 0xFF, 0xFF

	envelope, err := padding.Pad(payload, 262144)
	require.NoError(t, err)

	got, err := padding.Unpad(envelope, 262144)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
