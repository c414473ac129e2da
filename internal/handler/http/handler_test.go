package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"desk-ledger/internal/directory"
	"desk-ledger/internal/domain"
	httpHandler "desk-ledger/internal/handler/http"
	gormpersistence "desk-ledger/internal/infra/persistence/gorm"
	"desk-ledger/internal/infra/setup"
	"desk-ledger/internal/ledger"
	"desk-ledger/internal/repository/mocks"
	"desk-ledger/internal/serializer"
	"desk-ledger/internal/service"
)

type nopCaster struct{}

func (nopCaster) RoomUpdate(context.Context, *domain.Room) error { return nil }
func (nopCaster) MemberUpdate(context.Context, string, domain.MemberPatch) error {
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := setup.InitDB(setup.DBOptions{Driver: setup.DriverSQLite, DSN: dsn, Quiet: true})
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))

	rooms := gormpersistence.NewGormRoomRepository(db)
	users := gormpersistence.NewGormUserRepository(db)
	serial := serializer.New(nil)
	t.Cleanup(func() {
		serial.Close()
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	roomSvc := service.NewRoomService(rooms, directory.New(rooms, 0), ledger.New(ledger.WithMaxMembers(2)), serial, nopCaster{}, nil)
	router := gin.New()
	httpHandler.RegisterRoutes(router.Group("/api"),
		httpHandler.NewRoomHandler(roomSvc),
		httpHandler.NewUserHandler(service.NewUserService(users)))
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeRoom(t *testing.T, env envelope) domain.Room {
	t.Helper()
	require.True(t, env.Success)
	var room domain.Room
	require.NoError(t, json.Unmarshal(env.Data, &room))
	return room
}

func createRoom(t *testing.T, router http.Handler) string {
	t.Helper()
	status, env := do(t, router, http.MethodPost, "/api/rooms", `{"ownerId":"u1","ownerName":"Ann","roomName":"Friday"}`)
	require.Equal(t, http.StatusCreated, status)
	room := decodeRoom(t, env)
	require.Len(t, room.RoomCode, 6)
	return room.RoomCode
}

func TestRoomHandler_ScoreFlow(t *testing.T) {
	router := newRouter(t)
	code := createRoom(t, router)

	status, env := do(t, router, http.MethodPost, "/api/rooms/"+code+"/join", `{"externalId":"u2","nickname":"Bob"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeRoom(t, env).Members, 2)

	status, env = do(t, router, http.MethodPost, "/api/rooms/"+code+"/spend", `{"externalId":"u1","amount":30}`)
	require.Equal(t, http.StatusOK, status)
	room := decodeRoom(t, env)
	assert.Equal(t, int64(30), room.DeskScore)
	assert.Equal(t, int64(-30), room.Members[0].PersonalScore)

	status, env = do(t, router, http.MethodPost, "/api/rooms/"+code+"/reclaim", `{"externalId":"u2","amount":30}`)
	require.Equal(t, http.StatusOK, status)
	room = decodeRoom(t, env)
	assert.Equal(t, int64(0), room.DeskScore)
	assert.Equal(t, int64(30), room.Members[1].PersonalScore)
	require.Len(t, room.Logs, 3)
	assert.Equal(t, domain.ActionReclaim, room.Logs[0].Action)

	status, env = do(t, router, http.MethodGet, "/api/rooms/"+code, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, room.Version, decodeRoom(t, env).Version)
}

func TestRoomHandler_ErrorStatuses(t *testing.T) {
	router := newRouter(t)
	code := createRoom(t, router)
	_, _ = do(t, router, http.MethodPost, "/api/rooms/"+code+"/join", `{"externalId":"u2"}`)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing owner", http.MethodPost, "/api/rooms", `{"ownerName":"x"}`, http.StatusBadRequest, "ValidationError"},
		{"malformed body", http.MethodPost, "/api/rooms/" + code + "/spend", `{`, http.StatusBadRequest, "ValidationError"},
		{"missing amount", http.MethodPost, "/api/rooms/" + code + "/spend", `{"externalId":"u1"}`, http.StatusBadRequest, "ValidationError"},
		{"unknown room", http.MethodGet, "/api/rooms/000000", "", http.StatusNotFound, "RoomNotFound"},
		{"bad code", http.MethodGet, "/api/rooms/abc", "", http.StatusNotFound, "RoomNotFound"},
		{"unknown member", http.MethodPost, "/api/rooms/" + code + "/spend", `{"externalId":"ghost","amount":1}`, http.StatusNotFound, "MemberNotFound"},
		{"desk too small", http.MethodPost, "/api/rooms/" + code + "/reclaim", `{"externalId":"u1","amount":1}`, http.StatusConflict, "InsufficientDeskPool"},
		{"room full", http.MethodPost, "/api/rooms/" + code + "/join", `{"externalId":"u3"}`, http.StatusConflict, "RoomFull"},
		{"empty patch", http.MethodPatch, "/api/rooms/" + code + "/members/u1", `{}`, http.StatusBadRequest, "ValidationError"},
		{"patch unknown member", http.MethodPatch, "/api/rooms/" + code + "/members/ghost", `{"nickname":"x"}`, http.StatusNotFound, "MemberNotFound"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := do(t, router, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, status)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestRoomHandler_UpdateMember(t *testing.T) {
	router := newRouter(t)
	code := createRoom(t, router)

	status, env := do(t, router, http.MethodPatch, "/api/rooms/"+code+"/members/u1", `{"avatar":"a.png"}`)
	require.Equal(t, http.StatusOK, status)
	room := decodeRoom(t, env)
	assert.Equal(t, "Ann", room.Members[0].Nickname)
	assert.Equal(t, "a.png", room.Members[0].AvatarRef)
	assert.Empty(t, room.Logs, "资料更新不写日志")
}

func TestUserHandler_Upsert(t *testing.T) {
	router := newRouter(t)

	status, env := do(t, router, http.MethodPost, "/api/users", `{"externalId":"u1","nickname":"Ann"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)
	var user domain.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "Ann", user.Nickname)

	status, env = do(t, router, http.MethodPost, "/api/users", `{"nickname":"Ann"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ValidationError", env.Error.Code)
}

func TestUserHandler_InternalErrorHidesDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := new(mocks.UserRepository)
	users.On("Upsert", mock.Anything, "u1", mock.Anything, mock.Anything).
		Return(nil, errors.New("disk on fire"))

	router := gin.New()
	router.POST("/api/users", httpHandler.NewUserHandler(service.NewUserService(users)).UpsertUser)

	status, env := do(t, router, http.MethodPost, "/api/users", `{"externalId":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PersistenceError", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "disk on fire")
	users.AssertExpectations(t)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, httpHandler.StatusFor(fmt.Errorf("%w: x", domain.ErrValidation)))
	assert.Equal(t, http.StatusConflict, httpHandler.StatusFor(domain.ErrRoomFull))
	assert.Equal(t, http.StatusInternalServerError, httpHandler.StatusFor(errors.New("boom")))
}
