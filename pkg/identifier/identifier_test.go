package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParticipantID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ParticipantID
		wantErr bool
	}{
		{
			name:  "with scheme",
			input: "iso6523-actorid-upis::0088:5798000000001",
			want:  ParticipantID{Scheme: SchemeParticipant, Value: "0088:5798000000001"},
		},
		{
			name:  "bare value",
			input: "9915:test",
			want:  ParticipantID{Scheme: SchemeParticipant, Value: "9915:test"},
		},
		{
			name:    "empty",
			input:   "  ",
			wantErr: true,
		},
		{
			name:    "scheme without value",
			input:   "iso6523-actorid-upis::",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParticipantID(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdentifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURIEncoded(t *testing.T) {
	p := NewParticipantID("0088:123")
	assert.Equal(t, "iso6523-actorid-upis::0088:123", p.URIEncoded())
	assert.True(t, p.IsValid())
	assert.False(t, ParticipantID{Scheme: SchemeParticipant}.IsValid())

	assert.Equal(t, "cenbii-procid-ubl::urn:peppol:edec:mls", ProcessMLS.URIEncoded())
}

func TestParseDocumentTypeKeepsInnerSeparators(t *testing.T) {
	d, err := ParseDocumentTypeID(DocTypeMLR.URIEncoded())
	require.NoError(t, err)
	assert.Equal(t, DocTypeMLR, d)

	// no known scheme prefix: the whole string is the value
	d, err = ParseDocumentTypeID(DocTypeMLR.Value)
	require.NoError(t, err)
	assert.Equal(t, SchemeDocumentTypeBusdox, d.Scheme)
	assert.Equal(t, DocTypeMLR.Value, d.Value)
}
