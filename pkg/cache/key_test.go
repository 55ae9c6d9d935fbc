package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "endpoint only",
			key:  Key{Endpoint: "/books/9780134685991/enriched"},
			want: "catalog:books/9780134685991/enriched",
		},
		{
			name: "endpoint with query",
			key: Key{
				Endpoint: "/books",
				Query:    url.Values{"q": []string{"tolkien"}},
			},
			want: "catalog:books:q=tolkien",
		},
		{
			name: "query params sorted",
			key: Key{
				Endpoint: "/books",
				Query: url.Values{
					"limit": []string{"10"},
					"q":     []string{"tolkien"},
				},
			},
			want: "catalog:books:limit=10:q=tolkien",
		},
		{
			name: "empty endpoint",
			key:  Key{},
			want: "catalog",
		},
		{
			name: "trailing slash normalized",
			key:  Key{Endpoint: "/stats/"},
			want: "catalog:stats",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	key := Key{
		Endpoint: "/books",
		Query: url.Values{
			"a": []string{"1"},
			"b": []string{"2"},
			"c": []string{"3"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}
