package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/text/language"

	"github.com/brixfix/brixfix-go/internal/auth"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
)

const csrfContextKey = "csrf"

// PageData is passed to every dashboard template.
type PageData struct {
	Title   string
	Page    string
	Session *SessionContext
	CSRF    string
	Locale  language.Tag
	Version string
	Data    any
}

// UploadResult is one row of the results page.
type UploadResult struct {
	Filename    string
	Label       detection.Label
	Confidence  float64
	DetectionID uint
	HasImage    bool
	Error       string
}

func (c *Controller) initDashboardRoutes(limiter echo.MiddlewareFunc) {
	g := c.Echo.Group("/dashboard", c.csrfMiddleware())

	g.GET("/login", c.loginPage)
	g.POST("/login", c.loginSubmit, limiter)
	g.GET("/register", c.registerPage)
	g.POST("/register", c.registerSubmit, limiter)
	g.POST("/logout", c.logout)
	g.GET("/about", c.aboutPage)

	g.GET("", c.uploadPage, c.requireLogin)
	g.POST("/detect", c.detectSubmit, c.requireLogin)
	g.GET("/history", c.historyPage, c.requireLogin)
	g.GET("/images/:id", c.detectionImage, c.requireLogin)
	g.GET("/stats", c.statsPage, c.requireLogin)
}

func (c *Controller) csrfMiddleware() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/dashboard",
		CookieHTTPOnly: true,
		CookieSecure:   c.Settings.Security.SecureCookies,
		CookieSameSite: http.SameSiteLaxMode,
		ContextKey:     csrfContextKey,
		ErrorHandler: func(err error, ctx echo.Context) error {
			GetLogger().WithContext(ctx.Request().Context()).Warn("CSRF token validation failed",
				logger.String("path", ctx.Path()),
				logger.Error(err))
			return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
		},
	})
}

// renderPage saves the session, which consumes displayed flashes, and
// renders name inside the layout.
func (c *Controller) renderPage(ctx echo.Context, sc *SessionContext, name, title string, data any) error {
	if err := sc.save(ctx); err != nil {
		return err
	}
	token, _ := ctx.Get(csrfContextKey).(string)
	return ctx.Render(http.StatusOK, name, PageData{
		Title:   title,
		Page:    name,
		Session: sc,
		CSRF:    token,
		Locale:  detection.MatchLocale(c.Settings.Dashboard.Locale, ctx.Request().Header.Get("Accept-Language")),
		Version: c.build.GetVersion(),
		Data:    data,
	})
}

// redirectWithFlash stores msg and sends the browser to target.
func (c *Controller) redirectWithFlash(ctx echo.Context, sc *SessionContext, target, msg string) error {
	if msg != "" {
		sc.addFlash(msg)
	}
	if err := sc.save(ctx); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusSeeOther, target)
}

// flashMessage returns the client-facing text for err.
func flashMessage(err error) string {
	_, msg := statusFor(err)
	return msg
}

func (c *Controller) loginPage(ctx echo.Context) error {
	sc := c.loadSession(ctx)
	if sc.LoggedIn {
		return ctx.Redirect(http.StatusSeeOther, "/dashboard")
	}
	return c.renderPage(ctx, sc, "login", "Log in", nil)
}

func (c *Controller) loginSubmit(ctx echo.Context) error {
	sc := c.loadSession(ctx)

	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.redirectWithFlash(ctx, sc, "/dashboard/login", "invalid request")
	}

	user, err := c.auth.Authenticate(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		c.metrics.RecordAuth("login", false)
		if !isClientError(err) {
			return err
		}
		return c.redirectWithFlash(ctx, sc, "/dashboard/login", flashMessage(err))
	}

	c.metrics.RecordAuth("login", true)
	sc.login(user.Email)
	return c.redirectWithFlash(ctx, sc, "/dashboard", "logged in as "+user.Email)
}

func (c *Controller) registerPage(ctx echo.Context) error {
	sc := c.loadSession(ctx)
	return c.renderPage(ctx, sc, "register", "Register", nil)
}

func (c *Controller) registerSubmit(ctx echo.Context) error {
	sc := c.loadSession(ctx)

	var req auth.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return c.redirectWithFlash(ctx, sc, "/dashboard/register", "invalid request")
	}

	if _, err := c.auth.Register(ctx.Request().Context(), req); err != nil {
		c.metrics.RecordAuth("register", false)
		if !isClientError(err) {
			return err
		}
		return c.redirectWithFlash(ctx, sc, "/dashboard/register", flashMessage(err))
	}

	c.metrics.RecordAuth("register", true)
	return c.redirectWithFlash(ctx, sc, "/dashboard/login", "registration successful, please log in")
}

func (c *Controller) logout(ctx echo.Context) error {
	sc := c.loadSession(ctx)
	sc.logout()
	if err := sc.save(ctx); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusSeeOther, "/dashboard/login")
}

func (c *Controller) uploadPage(ctx echo.Context) error {
	sc := c.loadSession(ctx)
	return c.renderPage(ctx, sc, "upload", "Classify images", map[string]any{
		"ModelReady": c.classifier.Ready(),
	})
}

// detectSubmit classifies every file of the multipart "files" field.
// One failing file does not abort the others.
func (c *Controller) detectSubmit(ctx echo.Context) error {
	sc := c.loadSession(ctx)

	form, err := ctx.MultipartForm()
	if err != nil {
		return c.redirectWithFlash(ctx, sc, "/dashboard", "no files selected")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return c.redirectWithFlash(ctx, sc, "/dashboard", "no files selected")
	}

	results := make([]UploadResult, 0, len(files))
	for _, fh := range files {
		res := UploadResult{Filename: fh.Filename}
		switch {
		case fh.Filename == "":
			res.Error = "no file selected"
		case !isImageUpload(fh):
			res.Error = "file must be an image"
		default:
			rec, err := c.classifyUpload(ctx.Request().Context(), sc.Email, fh)
			if err != nil {
				res.Error = flashMessage(err)
				break
			}
			res.Label = rec.Label
			res.Confidence = rec.Confidence
			res.DetectionID = rec.ID
			res.HasImage = rec.ImageName != nil
		}
		results = append(results, res)
	}

	return c.renderPage(ctx, sc, "results", "Results", results)
}

func (c *Controller) historyPage(ctx echo.Context) error {
	sc := c.loadSession(ctx)

	records, err := c.DS.ListDetections(ctx.Request().Context(), sc.Email)
	if err != nil {
		return err
	}
	return c.renderPage(ctx, sc, "history", "History", records)
}

// detectionImage serves the stored PNG of one of the caller's own
// detections. Records of other users are reported as not found.
func (c *Controller) detectionImage(ctx echo.Context) error {
	sc := c.loadSession(ctx)

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	}

	data, err := c.DS.GetDetectionImage(ctx.Request().Context(), sc.Email, uint(id))
	if err != nil {
		if errors.Is(err, datastore.ErrDetectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "image not found")
		}
		return err
	}

	ctx.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return ctx.Blob(http.StatusOK, "image/png", data)
}

func (c *Controller) statsPage(ctx echo.Context) error {
	sc := c.loadSession(ctx)

	summary, err := c.DS.UserSummary(ctx.Request().Context(), sc.Email)
	if err != nil {
		return err
	}
	return c.renderPage(ctx, sc, "stats", "Statistics", summary)
}

func (c *Controller) aboutPage(ctx echo.Context) error {
	sc := c.loadSession(ctx)
	return c.renderPage(ctx, sc, "about", "About", map[string]any{
		"Backend":    c.classifier.BackendName(),
		"ModelReady": c.classifier.Ready(),
		"Labels":     detection.Labels,
	})
}

// isClientError reports whether err maps to a 4xx status.
func isClientError(err error) bool {
	code, _ := statusFor(err)
	return code < http.StatusInternalServerError
}
