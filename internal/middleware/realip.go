package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedRealIP переписывает RemoteAddr из X-Forwarded-For / X-Real-IP только если
// соединение пришло от доверенного прокси. Иначе остаётся адрес сокета, и заголовки клиента
// не влияют ни на лимит попыток входа, ни на InternalOnly.
// X-Forwarded-For разбирается справа налево: берётся первый адрес вне списка trusted.
func TrustedRealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 && isTrusted(trusted, ClientIP(r)) {
				if ip := forwardedFor(trusted, r); ip != "" {
					r.RemoteAddr = net.JoinHostPort(ip, "0")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedFor(trusted []netip.Prefix, r *http.Request) string {
	var hops []string
	for _, h := range r.Header.Values("X-Forwarded-For") {
		for _, part := range strings.Split(h, ",") {
			if part = strings.TrimSpace(part); part != "" {
				hops = append(hops, part)
			}
		}
	}
	last := ""
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			// Мусор в цепочке: дальше левее верить нельзя.
			return last
		}
		last = addr.Unmap().String()
		if !prefixesContain(trusted, addr) {
			return last
		}
	}
	if last != "" {
		return last
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	return ""
}

func isTrusted(trusted []netip.Prefix, ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return prefixesContain(trusted, addr)
}

func prefixesContain(prefixes []netip.Prefix, addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
