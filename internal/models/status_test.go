package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}
	assert.False(t, Status("").Valid())
	assert.False(t, Status("GREEN").Valid())
}

func TestStatusIsFailure(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusSuccess, false},
		{StatusNotFound, false},
		{StatusFailed, true},
		{StatusTimeout, true},
		{StatusSkipped, false},
		{StatusError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsFailure())
			assert.Equal(t, tt.want, tt.status.Retryable())
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("not_found")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, st)

	_, err = ParseStatus("partial")
	assert.Error(t, err)
}

func TestNormalizeOrganism(t *testing.T) {
	tests := map[string]string{
		"Homo sapiens":               "homo_sapiens",
		"  Mus musculus ":            "mus_musculus",
		"Escherichia coli K-12":      "escherichia_coli_k_12",
		"Saccharomyces (yeast)":      "saccharomyces_yeast",
		"already_normal":             "already_normal",
		"__Drosophila--melanogaster": "drosophila_melanogaster",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeOrganism(in), "input %q", in)
	}
}

func TestWorkItemKeyAndValidate(t *testing.T) {
	item := WorkItem{Organism: "homo_sapiens", Release: 21}
	assert.Equal(t, "homo_sapiens@21", item.Key())
	assert.NoError(t, item.Validate())

	item.ID = "hs-21"
	assert.Equal(t, "hs-21", item.Key())

	assert.Error(t, WorkItem{Release: 3}.Validate())
	assert.Error(t, WorkItem{Organism: "x", Release: -1}.Validate())
}

func TestWorkItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    WorkItem
		wantErr bool
	}{
		{"valid", WorkItem{Organism: "homo_sapiens", Release: 110}, false},
		{"release zero", WorkItem{Organism: "homo_sapiens"}, false},
		{"missing organism", WorkItem{Release: 110}, true},
		{"negative release", WorkItem{Organism: "homo_sapiens", Release: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkItemKeyAndPayload(t *testing.T) {
	item := WorkItem{Organism: "mus_musculus", Release: 109}
	assert.Equal(t, "mus_musculus@109", item.Key())

	_, ok := item.Get("input")
	assert.False(t, ok)

	item.ID = "mm-109"
	item.Payload = map[string]string{"input": "/data/mm.gff3"}
	assert.Equal(t, "mm-109", item.Key())
	v, ok := item.Get("input")
	assert.True(t, ok)
	assert.Equal(t, "/data/mm.gff3", v)
}
