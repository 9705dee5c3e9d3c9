package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vitrina/internal/culture"
	"vitrina/internal/dto"
	"vitrina/internal/model"
)

// UserName — имя пользователя текущей сессии.
func (s *Service) UserName() string {
	if s.isTransient {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.transientUserName
	}
	return s.store.Get("userName")
}

func (s *Service) setUserName(val string) {
	if s.isTransient {
		s.mu.Lock()
		s.transientUserName = val
		s.mu.Unlock()
		return
	}
	if val == "" {
		s.store.Delete("userName")
		return
	}
	expires := 30 * 24 * time.Hour
	if s.staySignedIn {
		expires = 365 * 24 * time.Hour
	}
	s.store.Set("userName", val, expires)
}

// AuthToken — токен аутентификации текущей сессии.
func (s *Service) AuthToken() string {
	if s.isTransient {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.transientAuthToken
	}
	return s.store.Get("authToken")
}

// SetAuthToken сохраняет токен (пустая строка сбрасывает его).
func (s *Service) SetAuthToken(val string) {
	if s.isTransient {
		s.mu.Lock()
		s.transientAuthToken = val
		s.mu.Unlock()
		return
	}
	s.setStoredAuthToken(val)
}

func (s *Service) setAuthTokenLocked(val string) {
	if s.isTransient {
		s.transientAuthToken = val
		return
	}
	s.setStoredAuthToken(val)
}

func (s *Service) setStoredAuthToken(val string) {
	if val == "" {
		s.store.Delete("authToken")
		return
	}
	if s.staySignedIn {
		s.store.Set("authToken", val, 14*24*time.Hour)
	} else {
		s.store.Set("authToken", val, 0)
	}
}

// AuthTokenType — вид токена: "JWT" (префикс "JWT:"), "Basic" либо ""
// при отсутствии токена.
func (s *Service) AuthTokenType() string {
	token := s.AuthToken()
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "JWT:") {
		return "JWT"
	}
	return "Basic"
}

func (s *Service) authTokenTypeLocked() string {
	var token string
	if s.isTransient {
		token = s.transientAuthToken
	} else {
		token = s.store.Get("authToken")
	}
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "JWT:") {
		return "JWT"
	}
	return "Basic"
}

// AuthTokenExpiry — срок действия JWT-токена из его claims.
// false, если токен отсутствует, не JWT или без срока.
func (s *Service) AuthTokenExpiry() (time.Time, bool) {
	if s.AuthTokenType() != "JWT" {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(s.AuthToken()[4:], claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// RequestedLanguage — язык, затребованный для сессии.
func (s *Service) RequestedLanguage() string {
	return s.store.Get("requestedLanguage")
}

// SetRequestedLanguage сохраняет затребованный язык.
func (s *Service) SetRequestedLanguage(lang string) {
	if lang == "" {
		s.store.Delete("requestedLanguage")
		return
	}
	s.store.Set("requestedLanguage", lang, 0)
}

// DefaultUserName — пользователь по умолчанию из клиентских данных.
func (s *Service) DefaultUserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clientData == nil {
		return ""
	}
	return s.clientData.DefaultUser
}

// RegisterUserName — пользователь регистрации из провайдера Vidyano.
func (s *Service) RegisterUserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.providers["Vidyano"]
	if p == nil {
		return ""
	}
	return p.RegisterUser
}

// IsSignedIn сообщает, выполнен ли вход.
func (s *Service) IsSignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSignedIn
}

// IsUsingDefaultCredentials — совпадает ли текущий пользователь
// с пользователем по умолчанию.
func (s *Service) IsUsingDefaultCredentials() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isUsingDefaultCredentials
}

func (s *Service) setIsSignedIn(v bool) {
	defaultUser := s.DefaultUserName()
	userName := s.UserName()

	s.mu.Lock()
	s.isSignedIn = v
	s.isUsingDefaultCredentials = defaultUser != "" && userName != "" &&
		strings.EqualFold(defaultUser, userName)
	s.mu.Unlock()
}

// Initialize загружает клиентские данные (языки, провайдеры) и, если
// есть сохранённый токен или пользователь по умолчанию, выполняет вход.
func (s *Service) Initialize(ctx context.Context, skipDefaultCredentialLogin bool) (*Application, error) {
	uri := s.createURI("GetClientData?v=3")
	if lang := s.RequestedLanguage(); lang != "" {
		uri += "&lang=" + url.QueryEscape(lang)
	}

	var clientData dto.ClientData
	if err := s.getJSON(ctx, uri, nil, &clientData); err != nil {
		return nil, err
	}

	cd, err := s.hooks.OnInitialize(ctx, &clientData)
	if err != nil {
		return nil, err
	}
	if cd.Exception != "" {
		return nil, &ServiceError{Exception: cd.Exception}
	}

	languages := make([]*Language, 0, len(cd.Languages))
	for cultureName, lang := range cd.Languages {
		languages = append(languages, newLanguage(cultureName, lang))
	}

	providers := make(map[string]*dto.ProviderParameters, len(cd.Providers))
	for name, container := range cd.Providers {
		providers[name] = container.Parameters
	}

	s.mu.Lock()
	s.clientData = cd
	s.languages = languages
	s.language = nil
	for _, l := range languages {
		if l.IsDefault {
			s.language = l
			break
		}
	}
	if s.language == nil && len(languages) > 0 {
		s.language = languages[0]
	}
	s.providers = providers
	s.windowsAuthentication = cd.WindowsAuthentication
	s.mu.Unlock()

	if s.UserName() == "" {
		s.setUserName(cd.DefaultUser)
	}

	if s.AuthToken() != "" || ((cd.DefaultUser != "" || cd.WindowsAuthentication) && !skipDefaultCredentialLogin) {
		app, err := s.getApplication(ctx, s.createData("getApplication"))
		if err != nil {
			s.log.Warn().Err(err).Msg("вход по сохранённым данным не выполнен")
			return nil, nil
		}
		return app, nil
	}

	s.setIsSignedIn(s.Application() != nil)
	return nil, nil
}

// GetCredentialType возвращает вид учётных данных пользователя
// (до запроса пароля: внешний провайдер, двухфакторность и т.д.).
func (s *Service) GetCredentialType(ctx context.Context, userName string) (*dto.Response, error) {
	return s.postJSON(ctx, "authenticate/GetCredentialType", map[string]any{"userName": userName})
}

// SignInUsingCredentials выполняет вход по имени и паролю.
// code — необязательный код двухфакторной аутентификации.
func (s *Service) SignInUsingCredentials(ctx context.Context, userName, password, code string, staySignedIn bool) (*Application, error) {
	s.setUserName(userName)

	data := s.createData("getApplication")
	data["userName"] = userName
	data["password"] = password
	if code != "" {
		data["code"] = code
	}

	app, err := s.getApplication(ctx, data)
	if err != nil {
		return nil, err
	}

	if app != nil && s.IsSignedIn() && !s.isTransient {
		s.mu.Lock()
		s.staySignedIn = staySignedIn
		s.mu.Unlock()
		if staySignedIn {
			s.store.Set("staySignedIn", "true", 365*24*time.Hour)
		} else {
			s.store.Delete("staySignedIn")
		}
	}

	return app, nil
}

// SignInUsingDefaultCredentials входит пользователем по умолчанию.
func (s *Service) SignInUsingDefaultCredentials(ctx context.Context) (*Application, error) {
	s.setUserName(s.DefaultUserName())
	return s.getApplication(ctx, s.createData("getApplication"))
}

// SignOut завершает сессию и сбрасывает сохранённые учётные данные.
func (s *Service) SignOut(ctx context.Context) error {
	if s.AuthToken() != "" {
		app := s.Application()
		if app != nil {
			if _, err := s.ExecuteAction(ctx, "PersistentObject.viSignOut", app.PersistentObject, nil, nil, nil); err != nil {
				s.log.Debug().Err(err).Msg("серверный выход не подтверждён")
			}
		}
	}

	userName := s.UserName()
	if userName == s.DefaultUserName() || userName == s.RegisterUserName() {
		s.setUserName("")
	}

	s.SetAuthToken("")

	s.mu.Lock()
	s.application = nil
	s.initial = nil
	s.mu.Unlock()

	s.setIsSignedIn(false)
	return nil
}

// getApplication выполняет GetApplication и настраивает сессию:
// язык, культуру, каталог действий и клиентские сообщения.
func (s *Service) getApplication(ctx context.Context, data map[string]any) (*Application, error) {
	hasCredentials := data["authToken"] != nil || data["password"] != nil || data["accessToken"] != nil
	userName := s.UserName()
	if !hasCredentials && userName != "" && userName != s.DefaultUserName() && userName != s.RegisterUserName() {
		if s.DefaultUserName() != "" {
			s.setUserName(s.DefaultUserName())
		}
		if s.UserName() == "" {
			return nil, &ServiceError{Exception: "Session expired"}
		}
		data["userName"] = s.UserName()
	}

	result, err := s.postJSON(ctx, "GetApplication", data)
	if err != nil {
		return nil, err
	}
	if result.Application == nil {
		return nil, errors.New("unknown error")
	}

	app := newApplication(s, result.Application)

	s.mu.Lock()
	s.application = app
	if !app.canProfile {
		s.profile = false
		s.profiledRequests = nil
	}

	for _, l := range s.languages {
		if l.Culture == result.UserLanguage {
			s.language = l
			break
		}
	}

	cultureName := result.UserCultureInfo
	if cultureName == "" {
		cultureName = result.UserLanguage
	}
	s.currentCulture = culture.Resolve(s.cultures, cultureName)
	s.mu.Unlock()

	// Каталог действий приложения.
	if actionsQuery := app.GetQuery("Actions"); actionsQuery != nil {
		defs := make(map[string]*ActionDefinition)
		for _, item := range actionsQuery.Items() {
			def := newActionDefinition(item)
			if def.Name != "" {
				defs[def.Name] = def
			}
		}
		s.mu.Lock()
		s.actionDefinitions = defs
		s.mu.Unlock()
	}

	// Переводы, добавленные приложением поверх языка.
	if messagesQuery := app.GetQuery("ClientMessages"); messagesQuery != nil {
		s.mu.Lock()
		if s.language != nil {
			merged := make(map[string]string, len(s.language.Messages))
			for k, v := range s.language.Messages {
				merged[k] = v
			}
			for _, item := range messagesQuery.Items() {
				key, _ := item.GetValue("Key").(string)
				value, _ := item.GetValue("Value").(string)
				if key != "" {
					merged[key] = value
				}
			}
			s.language.Messages = merged
		}
		s.mu.Unlock()
	}

	if result.Initial != nil {
		initial := model.NewPersistentObject(s, result.Initial)
		s.mu.Lock()
		s.initial = initial
		s.mu.Unlock()
	}

	if result.UserName != s.RegisterUserName() || result.UserName == s.DefaultUserName() {
		s.setUserName(result.UserName)
		if result.Session != nil {
			app.updateSession(s, result.Session)
		}
		s.setIsSignedIn(true)
	} else {
		s.setIsSignedIn(false)
	}

	return app, nil
}

// ForgotPassword запускает восстановление пароля пользователя.
func (s *Service) ForgotPassword(ctx context.Context, userName string) (*dto.Response, error) {
	result, err := s.postJSON(ctx, "forgotpassword", map[string]any{"userName": userName})
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, fmt.Errorf("forgot password: %w", err)
	}
	return result, nil
}
