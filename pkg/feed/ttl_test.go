package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTTL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "ttl in channel",
			body: `<rss><channel><title>x</title><ttl>60</ttl></channel></rss>`,
			want: 60,
		},
		{
			name: "no ttl",
			body: `<rss><channel><title>x</title></channel></rss>`,
			want: 0,
		},
		{
			name: "ttl with whitespace",
			body: `<rss><channel><ttl> 120 </ttl></channel></rss>`,
			want: 120,
		},
		{
			name: "non-numeric ttl",
			body: `<rss><channel><ttl>soon</ttl></channel></rss>`,
			want: 0,
		},
		{
			name: "zero ttl",
			body: `<rss><channel><ttl>0</ttl></channel></rss>`,
			want: 0,
		},
		{
			name: "negative ttl",
			body: `<rss><channel><ttl>-5</ttl></channel></rss>`,
			want: 0,
		},
		{
			name: "ttl outside channel",
			body: `<rss><ttl>60</ttl><channel><title>x</title></channel></rss>`,
			want: 0,
		},
		{
			name: "ttl nested in item still counts",
			body: `<rss><channel><item><ttl>45</ttl></item></channel></rss>`,
			want: 45,
		},
		{
			name: "atom feed has no ttl",
			body: `<feed xmlns="http://www.w3.org/2005/Atom"><title>x</title></feed>`,
			want: 0,
		},
		{
			name: "empty body",
			body: "",
			want: 0,
		},
		{
			name: "uppercase element names",
			body: `<RSS><CHANNEL><TTL>30</TTL></CHANNEL></RSS>`,
			want: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTTL([]byte(tt.body)))
		})
	}
}
