package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harrison-roh/crop-disease-classification/cropapp/data"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
	"github.com/harrison-roh/crop-disease-classification/cropapp/metrics"
)

// Classifier 이미지 추론
type Classifier interface {
	Predict(ctx context.Context, image string) (*inference.Result, error)
	Info() inference.Info
}

// APIs api 핸들러
type APIs struct {
	I Classifier
	M *data.Manager
}

var errNoImage = errors.New("No image provided. Send JSON with key 'image' (base64 or data URI).")

// PredictRequest 추론 요청
type PredictRequest struct {
	Image string `json:"image"`
}

// RegisterRequest 농민 등록 요청
type RegisterRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// LoginRequest 로그인 요청
type LoginRequest struct {
	Phone string `json:"phone"`
}

// Health 서버 상태와 모델 정보 반환
func (a *APIs) Health(c *gin.Context) {
	c.JSON(http.StatusOK, a.I.Info())
}

// Predict base64 이미지 추론
func (a *APIs) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
		metrics.RecordPrediction(metrics.ResultBadRequest, 0)
		Error(c, http.StatusBadRequest, errNoImage)
		return
	}

	t0 := time.Now()
	result, err := a.I.Predict(c.Request.Context(), req.Image)
	if err != nil {
		metrics.RecordPrediction(metrics.ResultError, time.Since(t0))
		logging.Warn().Err(err).Str("request_id", RequestID(c)).Msg("Prediction failed")
		Error(c, http.StatusInternalServerError, err)
		return
	}
	metrics.RecordPrediction(metrics.ResultOK, time.Since(t0))

	c.JSON(http.StatusOK, result)
}

// Register 농민 등록
func (a *APIs) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RecordFarmerRequest("register", metrics.ResultBadRequest)
		Error(c, http.StatusBadRequest, data.ErrMissingFields)
		return
	}

	err := a.M.Register(c.Request.Context(), req.Name, req.Phone, req.Location)
	switch {
	case err == nil:
		metrics.RecordFarmerRequest("register", metrics.ResultOK)
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
		})
	case errors.Is(err, data.ErrMissingFields):
		metrics.RecordFarmerRequest("register", metrics.ResultBadRequest)
		Error(c, http.StatusBadRequest, err)
	case errors.Is(err, data.ErrPhoneRegistered):
		metrics.RecordFarmerRequest("register", metrics.ResultConflict)
		Error(c, http.StatusConflict, err)
	default:
		metrics.RecordFarmerRequest("register", metrics.ResultError)
		logging.Error().Err(err).Str("request_id", RequestID(c)).Msg("Register failed")
		Error(c, http.StatusInternalServerError, err)
	}
}

// Login 전화번호로 로그인
func (a *APIs) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RecordFarmerRequest("login", metrics.ResultBadRequest)
		Error(c, http.StatusBadRequest, data.ErrPhoneRequired)
		return
	}

	profile, err := a.M.Login(c.Request.Context(), req.Phone)
	switch {
	case err == nil:
		metrics.RecordFarmerRequest("login", metrics.ResultOK)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"farmer":  profile,
		})
	case errors.Is(err, data.ErrPhoneRequired):
		metrics.RecordFarmerRequest("login", metrics.ResultBadRequest)
		Error(c, http.StatusBadRequest, err)
	case errors.Is(err, data.ErrInvalidPhone):
		metrics.RecordFarmerRequest("login", metrics.ResultUnauthorized)
		Error(c, http.StatusUnauthorized, err)
	default:
		metrics.RecordFarmerRequest("login", metrics.ResultError)
		logging.Error().Err(err).Str("request_id", RequestID(c)).Msg("Login failed")
		Error(c, http.StatusInternalServerError, err)
	}
}

// HTTPError api 에러 메시지
type HTTPError struct {
	Error string `json:"error"`
}

// Error api 에러를 담은 json 응답 생성
func Error(c *gin.Context, status int, err error) {
	c.JSON(status, HTTPError{
		Error: err.Error(),
	})
}
