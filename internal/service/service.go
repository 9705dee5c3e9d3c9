package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"vitrina/internal/culture"
	"vitrina/internal/dto"
	"vitrina/internal/model"
)

const clientVersion = "3"

// ServiceError — исключение, возвращённое сервером в конверте ответа.
type ServiceError struct {
	Exception string
}

func (e *ServiceError) Error() string { return e.Exception }

// IsSessionExpired сообщает, является ли ошибка истечением сессии.
func IsSessionExpired(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Exception == "Session expired"
}

// Options — настройки создаваемого сервиса.
type Options struct {
	Hooks     Hooks
	Transient bool
	Client    *http.Client
	Store     CredentialStore
	Logger    zerolog.Logger
	Cultures  map[string]*culture.Culture

	// Environment/EnvironmentVersion уходят в каждый запрос.
	Environment        string
	EnvironmentVersion string
}

// Service — клиент протокола: аутентификация, пять операций провода,
// потоковые действия, профилировка и клиентские операции.
type Service struct {
	serviceURI  string
	hooks       Hooks
	isTransient bool

	client *http.Client
	log    zerolog.Logger
	store  CredentialStore

	environment        string
	environmentVersion string

	// Подменяется в тестах для проверки пауз 429 без реального ожидания.
	sleep func(ctx context.Context, d time.Duration) error

	mu                        sync.RWMutex
	clientData                *dto.ClientData
	application               *Application
	initial                   *model.PersistentObject
	language                  *Language
	languages                 []*Language
	providers                 map[string]*dto.ProviderParameters
	windowsAuthentication     bool
	staySignedIn              bool
	isSignedIn                bool
	isUsingDefaultCredentials bool
	transientUserName         string
	transientAuthToken        string
	lastAuthTokenUpdate       time.Time

	profile          bool
	profiledRequests []*dto.ProfilerRequest

	opsMu          sync.Mutex
	queuedOps      []dto.ClientOperation
	opsDispatching bool

	actionDefinitions map[string]*ActionDefinition
	cultures          map[string]*culture.Culture
	currentCulture    *culture.Culture
}

// New создаёт сервис для указанного адреса бэкенда.
func New(serviceURI string, opts *Options) *Service {
	if opts == nil {
		opts = &Options{}
	}

	s := &Service{
		serviceURI:         serviceURI,
		hooks:              opts.Hooks,
		isTransient:        opts.Transient,
		client:             opts.Client,
		log:                opts.Logger,
		store:              opts.Store,
		environment:        opts.Environment,
		environmentVersion: opts.EnvironmentVersion,
		cultures:           opts.Cultures,
		actionDefinitions:  make(map[string]*ActionDefinition),
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}

	if s.hooks == nil {
		s.hooks = BaseHooks{}
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.store == nil {
		s.store = NewMemoryCredentialStore()
	}
	if s.environment == "" {
		s.environment = "Web,ServiceWorker"
	}

	if !s.isTransient {
		s.staySignedIn = s.store.Get("staySignedIn") == "true"
	}

	return s
}

func (s *Service) ServiceURI() string { return s.serviceURI }
func (s *Service) IsTransient() bool  { return s.isTransient }

func (s *Service) Hooks() model.Hooks { return s.hooks }

// ServiceHooks — транспортные хуки сервиса.
func (s *Service) ServiceHooks() Hooks { return s.hooks }

func (s *Service) Logger() *zerolog.Logger { return &s.log }

func (s *Service) createURI(method string) string {
	uri := s.serviceURI
	if uri != "" && !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri + method
}

// createData собирает общий конверт запроса: версия клиента, окружение,
// учётные данные, сессия и язык.
func (s *Service) createData(method string) map[string]any {
	data := map[string]any{
		"clientVersion":      clientVersion,
		"environment":        s.environment,
		"environmentVersion": s.environmentVersion,
	}

	if method != "getApplication" {
		data["userName"] = s.UserName()
		if s.UserName() != s.DefaultUserName() {
			data["authToken"] = s.AuthToken()
		}
	}

	if lang := s.RequestedLanguage(); lang != "" {
		data["requestedLanguage"] = lang
	}

	s.mu.RLock()
	app := s.application
	profile := s.profile
	s.mu.RUnlock()

	if app != nil && app.Session() != nil {
		data["session"] = app.Session().ToServiceObject(true)
	}
	if profile {
		data["profile"] = true
	}

	return data
}

// fetch выполняет запрос с повторами на HTTP 429: пауза берётся из
// заголовка Retry-After (секунды или дата), по умолчанию 5 секунд.
// Количество повторов не ограничено: сервер сам управляет темпом.
func (s *Service) fetch(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	for {
		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := s.client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		delay := 5 * time.Second
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				delay = time.Duration(seconds) * time.Second
			} else if when, err := http.ParseTime(retryAfter); err == nil {
				if d := time.Until(when); d > 0 {
					delay = d
				} else {
					delay = 0
				}
			}
		}

		s.log.Debug().Dur("delay", delay).Str("url", req.URL.String()).Msg("ограничение темпа, повтор запроса")
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (s *Service) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	resp, err := s.fetch(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// attachment — один файл multipart-запроса ExecuteAction.
type attachment struct {
	field    string
	filename string
	content  io.Reader
}

// От первой '{' до последней '}': всё вокруг — HTML-обёртка.
var embeddedJSONRe = regexp.MustCompile(`(?s)\{.*\}`)

// postJSON отправляет конверт запроса и разбирает конверт ответа,
// включая обновление токена, сессии, профилировку и клиентские операции.
func (s *Service) postJSON(ctx context.Context, method string, data map[string]any) (*dto.Response, error) {
	return s.post(ctx, method, data, nil)
}

func (s *Service) post(ctx context.Context, method string, data map[string]any, files []attachment) (*dto.Response, error) {
	createdRequest := time.Now()
	requestStart := time.Now()

	headers := map[string]string{}
	if s.AuthTokenType() == "JWT" {
		headers["Authorization"] = "bearer " + s.AuthToken()[4:]
		delete(data, "userName")
		delete(data, "authToken")
	}

	// Потоковое действие уходит по SSE-ветке.
	if action, ok := data["action"].(string); ok && len(files) == 0 {
		name := action
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if def := s.ActionDefinition(name); def != nil && def.IsStreaming {
			return nil, s.postStream(ctx, method, name, data, headers)
		}
	}

	var body []byte
	var contentType string
	if len(files) == 0 {
		var err error
		body, err = dto.Marshal(data)
		if err != nil {
			return nil, err
		}
		contentType = "application/json"
	} else {
		var err error
		body, contentType, err = buildMultipart(data, files)
		if err != nil {
			return nil, err
		}
	}

	resp, err := s.fetch(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.createURI(method), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch ct := resp.Header.Get("Content-Type"); {
	case strings.Contains(ct, "application/json"):
	case strings.Contains(ct, "text/html"):
		// Некоторые прокси оборачивают JSON в HTML-страницу.
		m := embeddedJSONRe.Find(raw)
		if m == nil {
			return nil, errors.New("invalid content-type")
		}
		raw = m
	default:
		return nil, errors.New("invalid content-type")
	}

	var result dto.Response
	if err := dto.Unmarshal(raw, &result); err != nil {
		return nil, err
	}

	exception := result.Exception
	if exception == "" {
		exception = result.ExceptionMessage
	}

	defer s.postProcess(data, &result, method, createdRequest, requestStart, resp.Header.Get("X-ElapsedMilliseconds"))

	if exception == "" {
		s.mu.Lock()
		if createdRequest.After(s.lastAuthTokenUpdate) && s.authTokenTypeLocked() != "JWT" {
			s.setAuthTokenLocked(result.AuthToken)
			s.lastAuthTokenUpdate = createdRequest
		}
		app := s.application
		s.mu.Unlock()

		if app != nil && result.Session != nil {
			app.updateSession(s, result.Session)
		}
		return &result, nil
	}

	if exception == "Session expired" {
		// Тихая повторная аутентификация: токен сброшен, запрос уходит
		// повторно с паролем по умолчанию либо после хука.
		s.SetAuthToken("")
		delete(data, "authToken")

		switch {
		case s.DefaultUserName() != "" && s.DefaultUserName() == s.UserName():
			delete(data, "password")
			return s.post(ctx, method, data, files)
		default:
			retry, err := s.hooks.OnSessionExpired(ctx)
			if err != nil {
				return nil, err
			}
			if retry && s.DefaultUserName() != "" {
				delete(data, "password")
				data["userName"] = s.DefaultUserName()
				return s.post(ctx, method, data, files)
			}
			return nil, &ServiceError{Exception: exception}
		}
	}

	return nil, &ServiceError{Exception: exception}
}

func buildMultipart(data map[string]any, files []attachment) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.content); err != nil {
			return nil, "", err
		}
	}

	payload, err := dto.Marshal(data)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("data", string(payload)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// postProcess — профилировка и накопленные клиентские операции ответа.
func (s *Service) postProcess(data map[string]any, result *dto.Response, method string, createdRequest, requestStart time.Time, elapsedHeader string) {
	s.mu.Lock()
	if s.profile && result.Profiler != nil {
		if elapsedHeader != "" {
			if elapsed, err := strconv.ParseInt(elapsedHeader, 10, 64); err == nil {
				result.Profiler.ElapsedMilliseconds = elapsed
			}
		}

		transport := time.Since(requestStart).Milliseconds() - result.Profiler.ElapsedMilliseconds
		if transport < 0 {
			transport = 0
		}

		entry := &dto.ProfilerRequest{
			When:      createdRequest.Format(time.RFC3339Nano),
			Method:    method,
			Transport: transport,
			Profiler:  result.Profiler,
			Request:   data,
			Response:  result,
		}

		s.profiledRequests = append([]*dto.ProfilerRequest{entry}, s.profiledRequests...)
		if len(s.profiledRequests) > 20 {
			s.profiledRequests = s.profiledRequests[:20]
		}
	}
	s.mu.Unlock()

	if len(result.Operations) > 0 {
		s.enqueueClientOperations(result.Operations)
		result.Operations = nil
	}
	s.dispatchClientOperations()
}

func (s *Service) enqueueClientOperations(ops []dto.ClientOperation) {
	s.opsMu.Lock()
	s.queuedOps = append(s.queuedOps, ops...)
	s.opsMu.Unlock()
}

// QueuedClientOperations — операции, ожидающие диспетчеризации.
func (s *Service) QueuedClientOperations() []dto.ClientOperation {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()
	return append([]dto.ClientOperation(nil), s.queuedOps...)
}

// dispatchClientOperations раздаёт накопленные операции строго FIFO,
// отдельной горутиной, чтобы не вклиниваться в текущий вызов.
func (s *Service) dispatchClientOperations() {
	s.opsMu.Lock()
	if s.opsDispatching || len(s.queuedOps) == 0 {
		s.opsMu.Unlock()
		return
	}
	s.opsDispatching = true
	s.opsMu.Unlock()

	go func() {
		for {
			s.opsMu.Lock()
			if len(s.queuedOps) == 0 {
				s.opsDispatching = false
				s.opsMu.Unlock()
				return
			}
			op := s.queuedOps[0]
			s.queuedOps = s.queuedOps[1:]
			s.opsMu.Unlock()

			s.hooks.OnClientOperation(op)
		}
	}()
}

// Profile — включена ли профилировка запросов.
func (s *Service) Profile() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// SetProfile включает или выключает профилировку. Выключение очищает
// накопленные записи.
func (s *Service) SetProfile(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == v {
		return
	}
	s.profile = v
	if !v {
		s.profiledRequests = nil
	}
}

// ProfiledRequests — накопленные записи профилировки, свежие первыми.
// Хранится не более 20 записей.
func (s *Service) ProfiledRequests() []*dto.ProfilerRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*dto.ProfilerRequest(nil), s.profiledRequests...)
}

// ActionDefinition — описание действия из каталога приложения.
func (s *Service) ActionDefinition(name string) *ActionDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actionDefinitions[name]
}

// Message переводит ключ сообщения, подставляя параметры {0}, {1}, ...
func (s *Service) Message(key string, args ...string) string {
	s.mu.RLock()
	lang := s.language
	s.mu.RUnlock()

	text := key
	if lang != nil {
		if m, ok := lang.Messages[key]; ok {
			text = m
		}
	}
	for i, arg := range args {
		text = strings.ReplaceAll(text, "{"+strconv.Itoa(i)+"}", arg)
	}
	return text
}

// CurrentCulture — культура форматирования текущей сессии.
func (s *Service) CurrentCulture() *culture.Culture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentCulture == nil {
		return culture.Invariant()
	}
	return s.currentCulture
}

// Language — текущий язык.
func (s *Service) Language() *Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// Languages — все языки приложения.
func (s *Service) Languages() []*Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Language(nil), s.languages...)
}

// Providers — параметры провайдеров аутентификации.
func (s *Service) Providers() map[string]*dto.ProviderParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providers
}

// WindowsAuthentication — объявлена ли windows-аутентификация сервером.
func (s *Service) WindowsAuthentication() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windowsAuthentication
}

// Application — объект приложения после входа (nil до него).
func (s *Service) Application() *Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.application
}

// Initial — начальный объект, предложенный сервером при входе
// (например, смена истёкшего пароля).
func (s *Service) Initial() *model.PersistentObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initial
}
