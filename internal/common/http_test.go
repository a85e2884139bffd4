package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{name: "first forwarded", xff: "203.0.113.7, 10.0.0.1", remote: "10.0.0.2:443", want: "203.0.113.7"},
		{name: "skips garbage", xff: "unknown, 198.51.100.4", remote: "10.0.0.2:443", want: "198.51.100.4"},
		{name: "real ip", realIP: " 2001:db8::1 ", remote: "10.0.0.2:443", want: "2001:db8::1"},
		{name: "remote host", remote: "192.0.2.10:5555", want: "192.0.2.10"},
		{name: "mapped v4", remote: "[::ffff:192.0.2.10]:80", want: "192.0.2.10"},
		{name: "bare remote", remote: "192.0.2.11", want: "192.0.2.11"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/courier/pathao", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			require.Equal(t, tc.want, ClientIP(req))
		})
	}
	require.Empty(t, ClientIP(nil))
}

func TestParsePaginationAndFingerprint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/addresses?page=x&limit=500", nil)
	page, perPage := ParsePagination(req, 20, 100)
	require.Equal(t, 1, page)
	require.Equal(t, 100, perPage)
	require.Equal(t, 40, Pagination{Page: 3, PerPage: 20}.Offset())

	require.Equal(t, Fingerprint("steadfast", "{}"), Fingerprint("steadfast|{}"))
	require.NotEqual(t, Fingerprint("u1", "k"), Fingerprint("u2", "k"))
	require.Len(t, Fingerprint(), 64)
}

func TestIdentitySlotCarriesUserUpstream(t *testing.T) {
	outer := WithIdentity(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	_, ok := UserID(outer)
	require.False(t, ok)

	inner := WithUserID(WithIdentity(outer), "u1")
	id, ok := UserID(inner)
	require.True(t, ok)
	require.Equal(t, "u1", id)

	id, ok = UserID(outer)
	require.True(t, ok)
	require.Equal(t, "u1", id)
}
