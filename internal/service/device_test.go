package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBot(t *testing.T) {
	tests := []struct {
		ua       string
		expected bool
	}{
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true},
		{"Mozilla/5.0 (compatible; bingbot/2.0)", true},
		{"Mozilla/5.0 (compatible; YandexBot/3.0)", true},
		{"Baiduspider+(+http://www.baidu.com/search/spider.htm)", true},
		{"ia_archiver (+http://www.alexa.com/site/help/webmasters)", true},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0", false},
		{"", true},
		{"   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.ua, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBot(tt.ua))
		})
	}
}

func TestParseDevice(t *testing.T) {
	t.Run("empty user agent", func(t *testing.T) {
		info := ParseDevice("  ")
		assert.Equal(t, "unknown", info.Browser)
		assert.Equal(t, "unknown", info.OS)
		assert.Equal(t, "unknown", info.Device)
	})

	t.Run("desktop firefox", func(t *testing.T) {
		info := ParseDevice("Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
		assert.True(t, strings.HasPrefix(info.Browser, "Firefox"))
		assert.Contains(t, info.OS, "Linux")
		assert.Equal(t, "Desktop", info.Device)
		assert.False(t, info.Mobile)
		assert.False(t, info.Bot)
	})

	t.Run("iphone safari", func(t *testing.T) {
		info := ParseDevice("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		assert.True(t, info.Mobile)
		assert.True(t, strings.HasPrefix(info.Device, "Mobile"))
	})

	t.Run("ipad is a tablet", func(t *testing.T) {
		info := ParseDevice("Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1")
		assert.Equal(t, "Tablet", info.Device)
	})

	t.Run("crawler", func(t *testing.T) {
		info := ParseDevice("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
		assert.True(t, info.Bot)
		assert.Equal(t, "Bot", info.Device)
	})
}
