package controller

import (
	"net/http"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	"github.com/vibast-solutions/ms-go-uptask/app/dto"
	httpdto "github.com/vibast-solutions/ms-go-uptask/app/dto/http"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/app/types"
	"github.com/vibast-solutions/ms-go-uptask/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type UserAuthController struct {
	userAuthService service.UserAuthService
	cookie          config.CookieConfig
	production      bool
}

func NewUserAuthController(userAuthService service.UserAuthService, cookie config.CookieConfig, production bool) *UserAuthController {
	return &UserAuthController{
		userAuthService: userAuthService,
		cookie:          cookie,
		production:      production,
	}
}

func (c *UserAuthController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "register")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Register")
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	user, err := c.userAuthService.Register(ctx.Request().Context(), req)
	if err != nil {
		return writeError(ctx, err, "Register", logrus.Fields{"email": req.Email})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusCreated, httpdto.MessageResponse{
		Message: "account created, check your email to confirm it",
	})
}

func (c *UserAuthController) ConfirmAccount(ctx echo.Context) error {
	req, err := types.NewTokenRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "confirm account")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Confirm account")
	}

	if err = c.userAuthService.ConfirmAccount(ctx.Request().Context(), req); err != nil {
		return writeError(ctx, err, "Confirm account", nil)
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "account confirmed successfully"})
}

func (c *UserAuthController) Login(ctx echo.Context) error {
	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "login")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Login")
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	result, err := c.userAuthService.Login(ctx.Request().Context(), req)
	if err != nil {
		return writeError(ctx, err, "Login", logrus.Fields{"email": req.Email})
	}

	ctx.SetCookie(c.sessionCookie(result))

	logrus.WithField("user_id", result.User.ID).Info("Login successful")
	return ctx.JSON(http.StatusOK, userResponse(result.User))
}

func (c *UserAuthController) Logout(ctx echo.Context) error {
	cookie := c.baseCookie()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	ctx.SetCookie(cookie)

	if identity, ok := auth.IdentityFrom(ctx.Request().Context()); ok {
		logrus.WithField("user_id", identity.UserID).Info("Logout successful")
	}
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "logged out successfully"})
}

func (c *UserAuthController) RequestConfirmationCode(ctx echo.Context) error {
	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "request code")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Request code")
	}

	if err = c.userAuthService.RequestConfirmationCode(ctx.Request().Context(), req); err != nil {
		return writeError(ctx, err, "Request confirmation code", logrus.Fields{"email": req.Email})
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "a new code was sent to your email"})
}

func (c *UserAuthController) ForgotPassword(ctx echo.Context) error {
	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "forgot password")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Forgot password")
	}

	if err = c.userAuthService.ForgotPassword(ctx.Request().Context(), req); err != nil {
		return writeError(ctx, err, "Forgot password", logrus.Fields{"email": req.Email})
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "check your email for instructions"})
}

func (c *UserAuthController) ValidateToken(ctx echo.Context) error {
	req, err := types.NewTokenRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "validate token")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Validate token")
	}

	if err = c.userAuthService.ValidateToken(ctx.Request().Context(), req); err != nil {
		return writeError(ctx, err, "Validate token", nil)
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "valid token, set your new password"})
}

func (c *UserAuthController) ResetPassword(ctx echo.Context) error {
	req, err := types.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "reset password")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Reset password")
	}

	if err = c.userAuthService.ResetPassword(ctx.Request().Context(), req); err != nil {
		return writeError(ctx, err, "Reset password", nil)
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "password updated successfully"})
}

func (c *UserAuthController) CurrentUser(ctx echo.Context) error {
	identity, ok := auth.IdentityFrom(ctx.Request().Context())
	if !ok {
		return unauthenticated(ctx)
	}

	user, err := c.userAuthService.CurrentUser(ctx.Request().Context(), identity.UserID)
	if err != nil {
		return writeError(ctx, err, "Current user", logrus.Fields{"user_id": identity.UserID})
	}

	return ctx.JSON(http.StatusOK, userResponse(user))
}

func (c *UserAuthController) UpdateProfile(ctx echo.Context) error {
	identity, ok := auth.IdentityFrom(ctx.Request().Context())
	if !ok {
		return unauthenticated(ctx)
	}

	req, err := types.NewUpdateProfileRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "update profile")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Update profile")
	}

	user, err := c.userAuthService.UpdateProfile(ctx.Request().Context(), identity.UserID, req)
	if err != nil {
		return writeError(ctx, err, "Update profile", logrus.Fields{"user_id": identity.UserID})
	}

	logrus.WithField("user_id", user.ID).Info("Profile updated")
	return ctx.JSON(http.StatusOK, userResponse(user))
}

func (c *UserAuthController) ChangePassword(ctx echo.Context) error {
	identity, ok := auth.IdentityFrom(ctx.Request().Context())
	if !ok {
		return unauthenticated(ctx)
	}

	req, err := types.NewChangePasswordRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "change password")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Change password")
	}

	if err = c.userAuthService.ChangePassword(ctx.Request().Context(), identity.UserID, req); err != nil {
		return writeError(ctx, err, "Change password", logrus.Fields{"user_id": identity.UserID})
	}

	logrus.WithField("user_id", identity.UserID).Info("Password changed")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "password changed successfully"})
}

func (c *UserAuthController) CheckPassword(ctx echo.Context) error {
	identity, ok := auth.IdentityFrom(ctx.Request().Context())
	if !ok {
		return unauthenticated(ctx)
	}

	req, err := types.NewCheckPasswordRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "check password")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Check password")
	}

	if err = c.userAuthService.CheckPassword(ctx.Request().Context(), identity.UserID, req); err != nil {
		return writeError(ctx, err, "Check password", logrus.Fields{"user_id": identity.UserID})
	}

	return ctx.JSON(http.StatusOK, httpdto.CheckPasswordResponse{Message: "correct password", Valid: true})
}

func (c *UserAuthController) baseCookie() *http.Cookie {
	cookie := &http.Cookie{
		Name:     c.cookie.Name,
		Path:     "/",
		Domain:   c.cookie.Domain,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if c.production {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

// sessionCookie is a browser-session cookie unless the caller asked to be
// remembered, in which case it lives as long as the token.
func (c *UserAuthController) sessionCookie(result *dto.LoginResult) *http.Cookie {
	cookie := c.baseCookie()
	cookie.Value = result.Token
	if result.RememberMe {
		cookie.MaxAge = int(time.Until(result.ExpiresAt).Seconds())
	}
	return cookie
}

func userResponse(user *entity.User) httpdto.UserResponse {
	return httpdto.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Confirmed: user.IsConfirmed,
	}
}

func unauthenticated(ctx echo.Context) error {
	logrus.Warn("Handler reached without an authenticated identity")
	return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "not authenticated"})
}
