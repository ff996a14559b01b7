package handler

import (
	"mime"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAttachment(t *testing.T) {
	gin.SetMode(gin.TestMode)

	names := []string{
		"t1.gpx",
		`t"1.gpx`,
		`a\b.gpx`,
		"t1.gpx\r\nSet-Cookie: sid=1",
		"übersicht.jpg",
	}
	for _, name := range names {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		attachment(c, name)

		cd := w.Header().Get("Content-Disposition")
		if strings.ContainsAny(cd, "\r\n") {
			t.Errorf("%q: header carries a line break: %q", name, cd)
		}
		disposition, params, err := mime.ParseMediaType(cd)
		if err != nil {
			t.Errorf("%q: ParseMediaType(%q) err = %v", name, cd, err)
			continue
		}
		if disposition != "attachment" || params["filename"] != name {
			t.Errorf("%q: got %q filename=%q", name, disposition, params["filename"])
		}
	}
}
