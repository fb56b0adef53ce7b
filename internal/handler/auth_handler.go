package handler

import (
	"net/http"
	"time"

	"task-service/internal/middleware"
	"task-service/internal/model"
	"task-service/internal/partition"
	"task-service/pkg/jwtutil"
	"task-service/pkg/logger"
	"task-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Register creates a user in the partition the request host resolved to.
// The new user gets the default role; roles are raised later by an admin
// through the user update operation.
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		Phone      string `json:"phone"`
		Department string `json:"department"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("insert")(time.Now())

		var count int64
		if err := pc.Model(&model.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}

		user := model.NewUser(req.Email, string(hash), 0)
		user.FirstName = req.FirstName
		user.LastName = req.LastName
		user.Phone = req.Phone
		user.Department = req.Department

		if err := pc.Create(user).Error; err != nil {
			return err
		}

		log.Info("User registered",
			zap.String("email", user.Email),
			zap.Uint("id", user.ID),
			zap.String("partition", pc.Key()))
		return c.JSON(http.StatusCreated, user)
	})
}

// Login authenticates a user against the partition the request host resolved
// to and issues a token bound to that partition. On the public host it
// authenticates super principals instead.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if shared, _ := c.Get(middleware.SharedKey).(bool); shared {
		return loginShared(c, req.Email, req.Password)
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("query")(time.Now())

		var user model.User
		if err := pc.DB().Where("email = ?", req.Email).First(&user).Error; err != nil {
			log.Warn("Login failed: user not found", zap.String("email", req.Email))
			prometheus.RecordAuthError("user_not_found")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			log.Warn("Login failed: invalid password", zap.String("email", req.Email))
			prometheus.RecordAuthError("invalid_password")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}

		token, err := jwtutil.GenerateToken(&user, pc.Key())
		if err != nil {
			log.Error("Failed to generate token", zap.Error(err))
			prometheus.RecordAuthError("token_generation_failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
		}

		prometheus.IncreaseActiveTokens()
		log.Info("User logged in",
			zap.String("email", user.Email),
			zap.String("partition", pc.Key()),
			zap.String("role", string(user.Role)))

		return c.JSON(http.StatusOK, echo.Map{
			"token": token,
			"user":  user,
		})
	})
}

// loginShared authenticates a super principal on the public host. The token
// it issues carries no partition key and is only good for tenant
// administration.
func loginShared(c echo.Context, email, password string) error {
	log := logger.FromContext(c)
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	err := manager.Shared(c.Request().Context()).
		Where("email = ? AND super = ?", email, true).
		First(&user).Error
	if err != nil {
		log.Warn("Shared login failed: user not found", zap.String("email", email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		log.Warn("Shared login failed: invalid password", zap.String("email", email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := jwtutil.GenerateToken(&user, "")
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	prometheus.IncreaseActiveTokens()
	log.Info("Super principal logged in", zap.String("email", user.Email))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}
