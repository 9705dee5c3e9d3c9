package offline

import (
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"vitrina/internal/dto"
)

// NewRouter собирает HTTP-зеркало протокола: те же методы, что у
// живого сервера, но ответы берутся из локального хранилища.
func NewRouter(reg *Registry, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLog(log))

	r.POST("/GetQuery", GetQueryHandler(reg))
	r.POST("/GetPersistentObject", GetPersistentObjectHandler(reg))
	r.POST("/ExecuteQuery", ExecuteQueryHandler(reg))
	r.POST("/ExecuteAction", ExecuteActionHandler(reg))

	return r
}

// RunServer запускает зеркало на указанном адресе.
func RunServer(addr string, reg *Registry, log zerolog.Logger) error {
	return NewRouter(reg, log).Run(addr)
}

// requestLog — структурный лог запросов с ULID-идентификатором.
func requestLog(log zerolog.Logger) gin.HandlerFunc {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return func(c *gin.Context) {
		id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		c.Header("X-Request-Id", id)

		start := time.Now()
		c.Next()

		log.Debug().
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("запрос зеркала")
	}
}

func exception(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		// Промах кэша — явный пустой результат, не ошибка.
		c.JSON(http.StatusOK, dto.Response{})
		return
	}
	c.JSON(http.StatusOK, dto.Response{Exception: err.Error()})
}

func rawResult(c *gin.Context, v any) {
	raw, err := dto.Marshal(v)
	if err != nil {
		exception(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Response{Result: raw})
}

// POST /GetQuery
func GetQueryHandler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			ID string `json:"id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.ID == "" {
			c.JSON(http.StatusBadRequest, dto.Response{Exception: "Invalid request"})
			return
		}

		actions, err := reg.ActionsFor(c.Request.Context(), body.ID)
		if err != nil {
			exception(c, err)
			return
		}

		query, err := actions.GetQuery(c.Request.Context(), body.ID)
		if err != nil {
			exception(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.Response{Query: query})
	}
}

// POST /GetPersistentObject
func GetPersistentObjectHandler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			PersistentObjectTypeID string `json:"persistentObjectTypeId"`
			ObjectID               string `json:"objectId"`
			IsNew                  bool   `json:"isNew"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.PersistentObjectTypeID == "" {
			c.JSON(http.StatusBadRequest, dto.Response{Exception: "Invalid request"})
			return
		}

		actions, err := reg.ActionsFor(c.Request.Context(), body.PersistentObjectTypeID)
		if err != nil {
			exception(c, err)
			return
		}

		po, err := actions.GetPersistentObject(c.Request.Context(), body.PersistentObjectTypeID, body.ObjectID, body.IsNew)
		if err != nil {
			exception(c, err)
			return
		}
		rawResult(c, po)
	}
}

// POST /ExecuteQuery
func ExecuteQueryHandler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Query *dto.Query `json:"query"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Query == nil {
			c.JSON(http.StatusBadRequest, dto.Response{Exception: "Invalid request"})
			return
		}

		actions, err := reg.ActionsFor(c.Request.Context(), body.Query.ID)
		if err != nil {
			exception(c, err)
			return
		}

		result, err := actions.ExecuteQuery(c.Request.Context(), body.Query)
		if err != nil {
			exception(c, err)
			return
		}
		rawResult(c, result)
	}
}

// POST /ExecuteAction
func ExecuteActionHandler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Action        string                 `json:"action"`
			Parent        *dto.PersistentObject  `json:"parent"`
			Query         *dto.Query             `json:"query"`
			SelectedItems []*dto.QueryResultItem `json:"selectedItems"`
			Parameters    map[string]any         `json:"parameters"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Action == "" {
			c.JSON(http.StatusBadRequest, dto.Response{Exception: "Invalid request"})
			return
		}

		ctx := c.Request.Context()
		name := body.Action
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}

		switch {
		case strings.HasPrefix(body.Action, "Query.") && body.Query != nil:
			actions, err := reg.ActionsFor(ctx, body.Query.ID)
			if err != nil {
				exception(c, err)
				return
			}
			po, err := actions.ExecuteQueryAction(ctx, name, body.Query, body.SelectedItems, body.Parameters)
			if err != nil {
				exception(c, err)
				return
			}
			rawResult(c, po)

		case body.Parent != nil:
			actions, err := reg.ActionsFor(ctx, body.Parent.ID)
			if err != nil {
				exception(c, err)
				return
			}
			po, err := actions.ExecutePersistentObjectAction(ctx, name, body.Parent, body.Parameters)
			if err != nil {
				exception(c, err)
				return
			}
			rawResult(c, po)

		default:
			c.JSON(http.StatusBadRequest, dto.Response{Exception: "Invalid request"})
		}
	}
}
