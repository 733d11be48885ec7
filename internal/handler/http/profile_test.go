package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository/mocks"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

func newPenaltyTestRouter(userRepo *mocks.UserRepository, uid uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	penaltyService := service.NewPenaltyService(userRepo, logger)
	profileService := service.NewProfileService(userRepo, new(mocks.PresenceRepository))
	h := NewProfileHandler(profileService, penaltyService)

	router := gin.New()
	router.POST("/api/penalty", func(c *gin.Context) {
		if uid != 0 {
			c.Set("user_id", uid)
		}
		h.RecordPenalty(c)
	})
	return router
}

func TestProfileHandler_RecordPenalty(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	router := newPenaltyTestRouter(mockUserRepo, 1)

	mockUserRepo.On("UpdatePenaltyTx", mock.Anything, uint(1), mock.Anything).
		Return(&domain.User{ID: 1, PenaltyScore: 1, HonbapTemp: 47}, nil).Once()

	body := bytes.NewBufferString(`{"kind":"early_decline"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/penalty", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status service.PenaltyStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1, status.PenaltyScore)
	assert.InDelta(t, 47.0, status.HonbapTemp, 0.001)
	mockUserRepo.AssertExpectations(t)
}

func TestProfileHandler_RecordPenalty_UnknownKind(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	router := newPenaltyTestRouter(mockUserRepo, 1)

	body := bytes.NewBufferString(`{"kind":"whatever"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/penalty", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUserRepo.AssertNotCalled(t, "UpdatePenaltyTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestProfileHandler_RecordPenalty_Unauthenticated(t *testing.T) {
	router := newPenaltyTestRouter(new(mocks.UserRepository), 0)

	body := bytes.NewBufferString(`{"kind":"early_decline"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/penalty", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
