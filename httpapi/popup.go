package httpapi

import (
	"html/template"
	"net/http"

	"github.com/MrEthical07/goSocialAuth/pipeline"
)

// The result is JSON encoded by html/template's JS escaper, which calls the
// Result's MarshalJSON.
var popupTemplate = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing in</title></head>
<body>
<script>
(function () {
  var result = {{.Result}};
  var origin = {{.Origin}} || window.location.origin;
  if (window.opener) {
    window.opener.postMessage(result, origin);
  }
  window.close();
})();
</script>
<noscript>Sign-in finished. You can close this window.</noscript>
</body>
</html>
`))

type popupData struct {
	Result pipeline.Result
	Origin string
}

func (h *Handler) writePopup(w http.ResponseWriter, r *http.Request, status int, res pipeline.Result) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(status)
	if err := popupTemplate.Execute(w, popupData{Result: res, Origin: h.popupOrigin}); err != nil {
		h.logFlowError(r, err)
	}
}
