package ingest

import (
	"reflect"
	"testing"
)

func TestNormalizeHashtag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Travel", "travel"},
		{"  #Travel! ", "travel"},
		{"##food", "food"},
		{"#no_filter", "no_filter"},
		{"Café", "café"},
		{"###", ""},
		{"#_", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeHashtag(tt.in); got != tt.want {
			t.Errorf("NormalizeHashtag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "just a caption", nil},
		{"basic", "Sunset walk #Beach #sun!", []string{"beach", "sun"}},
		{"dedupe", "#beach, #BEACH #beach.", []string{"beach"}},
		{"joined", "#a#b", []string{"a", "b"}},
		{"empty tag", "# alone", nil},
	}
	for _, tt := range tests {
		got := ExtractHashtags(tt.text)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: ExtractHashtags(%q) = %v, want %v", tt.name, tt.text, got, tt.want)
		}
	}
}

func TestNormalizeHashtags(t *testing.T) {
	got := NormalizeHashtags([]string{"#Food", "food", "", "Travel"})
	want := []string{"food", "travel"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeHashtags = %v, want %v", got, want)
	}
	if got := NormalizeHashtags(nil); got == nil || len(got) != 0 {
		t.Errorf("NormalizeHashtags(nil) = %#v, want empty slice", got)
	}
}
