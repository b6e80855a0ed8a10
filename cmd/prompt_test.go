package cmd

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-shuttle/internal/database"
)

func newTestPrompter(input string, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(strings.NewReader(input)), out: out}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr string
	}{
		{name: "single", input: "2", want: []int{1}},
		{name: "list and range", input: "4, 1-2", want: []int{0, 1, 3}},
		{name: "duplicates", input: "1,1,1-2", want: []int{0, 1}},
		{name: "all", input: "all", want: []int{0, 1, 2, 3, 4}},
		{name: "star", input: "*", want: []int{0, 1, 2, 3, 4}},
		{name: "empty", input: "  ", wantErr: "nothing selected"},
		{name: "not a number", input: "x", wantErr: `invalid selection "x"`},
		{name: "out of range", input: "6", wantErr: "out of range 1-5"},
		{name: "zero", input: "0", wantErr: "out of range"},
		{name: "reversed range", input: "4-2", wantErr: `invalid range "4-2"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelection(tt.input, 5)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectManyRetriesInvalidInput(t *testing.T) {
	var out bytes.Buffer
	p := newTestPrompter("9\n1,3\n", &out)

	got, err := p.SelectMany("Tables", []string{"users", "orders", "audit"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "audit"}, got)
	assert.Contains(t, out.String(), "out of range")
	assert.Contains(t, out.String(), "  2) orders")
}

func TestSelectManyEmptySelectsAll(t *testing.T) {
	p := newTestPrompter("\n", &bytes.Buffer{})

	got, err := p.SelectMany("Columns", []string{"id", "name"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, got)
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "sure\n": false} {
		ok, err := newTestPrompter(input, &bytes.Buffer{}).Confirm("Create?")
		require.NoError(t, err)
		assert.Equal(t, want, ok, input)
	}

	_, err := newTestPrompter("", &bytes.Buffer{}).Confirm("Create?")
	assert.Error(t, err)
}

func TestPromptDescriptor(t *testing.T) {
	p := newTestPrompter("\nshop.local\n\nshop\nroot\ns3cret\n", &bytes.Buffer{})

	desc, err := p.PromptDescriptor("Source", database.Descriptor{})
	require.NoError(t, err)
	assert.Equal(t, database.Descriptor{
		Driver:   "mysql",
		Host:     "shop.local",
		Port:     3306,
		Database: "shop",
		User:     "root",
		Password: "s3cret",
	}, desc)
}

func TestPromptDescriptorKeepsKnownFields(t *testing.T) {
	var out bytes.Buffer
	p := newTestPrompter("pw\n", &out)

	known := database.Descriptor{Driver: "postgres", Host: "pg", Port: 5433, Database: "app", User: "app"}
	desc, err := p.PromptDescriptor("Destination", known)
	require.NoError(t, err)
	assert.Equal(t, "pw", desc.Password)
	assert.Equal(t, 5433, desc.Port)
	assert.NotContains(t, out.String(), "Host")
}

func TestPromptDescriptorRejectsUnknownDriver(t *testing.T) {
	p := newTestPrompter("oracle\n", &bytes.Buffer{})

	_, err := p.PromptDescriptor("Source", database.Descriptor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
