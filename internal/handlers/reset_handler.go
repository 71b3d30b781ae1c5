package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resetlink/backend/internal/logger"
	"github.com/resetlink/backend/internal/services"
	"go.uber.org/zap"
)

const resetPageHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Password Reset</title>
</head>
<body>
<h2>Password Reset</h2>
{{if .Message}}<p>{{.Message}}</p>{{end}}
{{if .ShowForm}}
<form method="POST">
  <label>New password for {{.Email}}:</label><br>
  <input name="password" type="password" required minlength="6"><br><br>
  <button type="submit">Set new password</button>
</form>
{{end}}
</body>
</html>
`

var resetPageTmpl = template.Must(template.New("reset_page").Parse(resetPageHTML))

type resetPageData struct {
	Message  string
	ShowForm bool
	Email    string
}

type ResetHandler struct {
	tokenService *services.TokenService
	passwords    services.PasswordSetter
}

func NewResetHandler(tokenService *services.TokenService, passwords services.PasswordSetter) *ResetHandler {
	return &ResetHandler{
		tokenService: tokenService,
		passwords:    passwords,
	}
}

// ShowResetForm handles GET requests. It classifies the token and renders
// either the password form or a rejection message. Nothing is mutated here.
func (h *ResetHandler) ShowResetForm(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		h.renderPage(c, http.StatusOK, resetPageData{Message: "Missing token."})
		return
	}

	eval, err := h.tokenService.Evaluate(c.Request.Context(), token)
	if err != nil {
		logger.Log.Error("token evaluation failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}

	switch eval.Status {
	case services.StatusMissing:
		h.renderPage(c, http.StatusOK, resetPageData{Message: "Invalid token."})
	case services.StatusUsed:
		h.renderPage(c, http.StatusOK, resetPageData{Message: "This link has already been used."})
	case services.StatusExpired:
		h.renderPage(c, http.StatusOK, resetPageData{Message: "This link has expired."})
	default:
		h.renderPage(c, http.StatusOK, resetPageData{ShowForm: true, Email: eval.Email})
	}
}

// SubmitNewPassword handles POST requests. Field validation happens before
// any store lookup; the token is consumed exactly once and only then is the
// new credential handed to the external user store.
func (h *ResetHandler) SubmitNewPassword(c *gin.Context) {
	token := c.Query("token")
	password := c.PostForm("password")
	if token == "" || password == "" {
		c.String(http.StatusBadRequest, "Missing token or password")
		return
	}
	if len(password) < 6 {
		c.String(http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	eval, err := h.tokenService.Redeem(c.Request.Context(), token)
	if err != nil {
		logger.Log.Error("token redemption failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}
	if eval.Status != services.StatusValid {
		c.String(http.StatusBadRequest, "Invalid or expired token")
		return
	}

	if err := h.passwords.SetPassword(c.Request.Context(), eval.Email, password); err != nil {
		logger.Log.Error("password update failed",
			zap.String("email", eval.Email), zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to update password")
		return
	}

	h.renderPage(c, http.StatusOK, resetPageData{
		Message: "Your password has been updated. You can close this page.",
	})
}

func (h *ResetHandler) renderPage(c *gin.Context, status int, data resetPageData) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := resetPageTmpl.Execute(c.Writer, data); err != nil {
		logger.Log.Error("reset page render failed", zap.Error(err))
	}
}
