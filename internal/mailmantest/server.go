// Package mailmantest 提供内存版的远端 REST 服务，用于测试同步层。
//
// 只实现同步层与适配器用到的端点，数据按创建顺序保存。
package mailmantest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mailmirror/backend/internal/domain"
)

const apiPrefix = "/3.1/"

// Request 服务收到的一次请求
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

// Server 内存远端服务
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	domains   []map[string]any
	lists     []map[string]any
	configs   map[string]map[string]any // list_id -> config
	users     []map[string]any
	addresses []map[string]any
	members   []map[string]any
	prefs     map[string]map[string]any // owner path -> preferences
	held      map[string][]map[string]any
	requests  []Request
	failures  map[string]int
	nextUser  int
	nextMem   int
}

// New 启动服务，测试结束时自动关闭
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		configs:  make(map[string]map[string]any),
		prefs:    make(map[string]map[string]any),
		held:     make(map[string][]map[string]any),
		failures: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// BaseURL 返回 API 根地址
func (s *Server) BaseURL() string { return s.URL + apiPrefix }

// Requests 返回已收到的请求副本
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count 统计方法与路径前缀匹配的请求数
func (s *Server) Count(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// Reset 清空请求记录
func (s *Server) Reset() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// Fail 让下一次匹配的请求返回指定状态
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	s.failures[method+" "+path] = status
	s.mu.Unlock()
}

func (s *Server) link(path string) string { return s.URL + apiPrefix + path }

// AddDomain 直接写入一个邮件域
func (s *Server) AddDomain(mailHost string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addDomainLocked(mailHost, "http://"+mailHost, "")
}

// AddList 直接写入一个列表，邮件域不存在时一并创建
func (s *Server) AddList(fqdn string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, _ := s.addListLocked(fqdn, true)
	return l
}

// AddUser 直接写入一个用户及其地址
func (s *Server) AddUser(email, displayName string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, _ := s.addUserLocked(email, displayName)
	return u
}

// AddMember 直接写入一个成员资格
func (s *Server) AddMember(listID, address, role string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, _ := s.addMemberLocked(listID, address, role)
	return m
}

// AddHeld 写入一条待审消息
func (s *Server) AddHeld(listID string, requestID int, sender, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[listID] = append(s.held[listID], map[string]any{
		"request_id": requestID,
		"sender":     sender,
		"subject":    subject,
		"reason":     "Post by non-member",
		"hold_date":  time.Now().UTC().Format("2006-01-02T15:04:05"),
		"msg":        "",
		"self_link":  s.link(fmt.Sprintf("lists/%s/held/%d", listID, requestID)),
	})
}

// Preferences 返回某个归属的远端偏好副本
func (s *Server) Preferences(owner string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any)
	for k, v := range s.prefs[owner] {
		out[k] = v
	}
	return out
}

// Config 返回列表配置副本
func (s *Server) Config(listID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any)
	for k, v := range s.configs[listID] {
		out[k] = v
	}
	return out
}

// SetConfig 覆盖列表的远端配置项
func (s *Server) SetConfig(listID string, values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.configs[listID]
	for k, v := range values {
		cfg[k] = v
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, apiPrefix), "/")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: path, Query: r.URL.Query(), Form: r.PostForm})

	if status, ok := s.failures[r.Method+" "+path]; ok {
		delete(s.failures, r.Method+" "+path)
		writeError(w, status, "injected failure")
		return
	}

	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if v, err := url.PathUnescape(seg); err == nil {
			segs[i] = v
		}
	}
	switch segs[0] {
	case "system":
		writeJSON(w, http.StatusOK, map[string]any{"api_version": "3.1", "mailman_version": "GNU Mailman 3.3 (fake)"})
	case "domains":
		s.serveDomains(w, r, segs[1:])
	case "lists":
		s.serveLists(w, r, segs[1:])
	case "users":
		s.serveUsers(w, r, segs[1:])
	case "addresses":
		s.serveAddresses(w, r, segs[1:])
	case "members":
		s.serveMembers(w, r, segs[1:])
	default:
		writeError(w, http.StatusNotFound, "no such collection")
	}
}

func (s *Server) serveDomains(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeCollection(w, s.domains)
		case http.MethodPost:
			host := r.PostForm.Get("mail_host")
			if host == "" || s.findLocked(s.domains, "mail_host", host) != nil {
				writeError(w, http.StatusBadRequest, "Duplicate email host: "+host)
				return
			}
			d := s.addDomainLocked(host, r.PostForm.Get("base_url"), r.PostForm.Get("description"))
			if c := r.PostForm.Get("contact_address"); c != "" {
				d["contact_address"] = c
			}
			writeCreated(w, d)
		default:
			writeError(w, http.StatusMethodNotAllowed, "")
		}
		return
	}

	d := s.findLocked(s.domains, "mail_host", segs[0])
	if d == nil {
		writeError(w, http.StatusNotFound, "")
		return
	}
	if len(segs) == 2 && segs[1] == "lists" {
		var out []map[string]any
		for _, l := range s.lists {
			if l["mail_host"] == segs[0] {
				out = append(out, l)
			}
		}
		writeCollection(w, out)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, d)
	case http.MethodPatch:
		for _, key := range []string{"base_url", "description", "contact_address"} {
			if v, ok := r.PostForm[key]; ok {
				d[key] = v[0]
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		s.domains = without(s.domains, d)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) serveLists(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) == 0 || (len(segs) == 1 && segs[0] == "find") {
		switch r.Method {
		case http.MethodGet:
			if len(segs) == 1 && r.URL.Query().Get("advertised") != "" {
				var out []map[string]any
				for _, l := range s.lists {
					if adv, _ := s.configs[l["list_id"].(string)]["advertised"].(bool); adv {
						out = append(out, l)
					}
				}
				writeCollection(w, out)
				return
			}
			writeCollection(w, s.lists)
		case http.MethodPost:
			fqdn := r.PostForm.Get("fqdn_listname")
			l, status := s.addListLocked(fqdn, false)
			if status != http.StatusCreated {
				writeError(w, status, "cannot create "+fqdn)
				return
			}
			writeCreated(w, l)
		}
		return
	}

	l := s.lookupListLocked(segs[0])
	if l == nil {
		writeError(w, http.StatusNotFound, "")
		return
	}
	listID := l["list_id"].(string)
	if len(segs) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, l)
		case http.MethodDelete:
			s.lists = without(s.lists, l)
			delete(s.configs, listID)
			var kept []map[string]any
			for _, m := range s.members {
				if m["list_id"] != listID {
					kept = append(kept, m)
				}
			}
			s.members = kept
			w.WriteHeader(http.StatusNoContent)
		}
		return
	}

	switch segs[1] {
	case "config":
		cfg := s.configs[listID]
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, cfg)
		case http.MethodPatch, http.MethodPut:
			for key, values := range r.PostForm {
				if readOnly[key] {
					writeError(w, http.StatusBadRequest, "Read-only attribute: "+key)
					return
				}
				cfg[key] = decodeForm(values[0])
			}
			w.WriteHeader(http.StatusNoContent)
		}
	case "roster":
		if len(segs) < 3 {
			writeError(w, http.StatusNotFound, "")
			return
		}
		writeCollection(w, s.filterMembersLocked(listID, "", segs[2]))
	case "held":
		if len(segs) == 3 && r.Method == http.MethodPost {
			id, _ := strconv.Atoi(segs[2])
			var kept []map[string]any
			for _, h := range s.held[listID] {
				if h["request_id"] != id {
					kept = append(kept, h)
				}
			}
			s.held[listID] = kept
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeCollection(w, s.held[listID])
	case "requests":
		writeCollection(w, nil)
	case "member":
		if len(segs) < 3 {
			writeError(w, http.StatusNotFound, "")
			return
		}
		s.serveRoleMember(w, r, listID, "member", segs[2])
	case "owner", "moderator":
		if len(segs) < 3 {
			writeError(w, http.StatusNotFound, "")
			return
		}
		s.serveRoleMember(w, r, listID, segs[1], segs[2])
	default:
		writeError(w, http.StatusNotFound, "")
	}
}

func (s *Server) serveRoleMember(w http.ResponseWriter, r *http.Request, listID, role, address string) {
	found := s.filterMembersLocked(listID, address, role)
	if len(found) == 0 {
		writeError(w, http.StatusNotFound, "")
		return
	}
	if r.Method == http.MethodDelete {
		s.members = without(s.members, found[0])
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, found[0])
}

func (s *Server) serveUsers(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeCollection(w, s.users)
		case http.MethodPost:
			email := strings.ToLower(r.PostForm.Get("email"))
			if email == "" {
				writeError(w, http.StatusBadRequest, "email required")
				return
			}
			u, ok := s.addUserLocked(email, r.PostForm.Get("display_name"))
			if !ok {
				writeError(w, http.StatusBadRequest, "User already exists: "+email)
				return
			}
			writeCreated(w, u)
		}
		return
	}

	u := s.findLocked(s.users, "user_id", segs[0])
	if u == nil {
		if a := s.findLocked(s.addresses, "email", strings.ToLower(segs[0])); a != nil {
			u = s.findLocked(s.users, "self_link", a["user"])
		}
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "")
		return
	}
	userPath := "users/" + u["user_id"].(string)
	if len(segs) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, u)
		case http.MethodPatch, http.MethodPut:
			if v, ok := r.PostForm["display_name"]; ok {
				u["display_name"] = v[0]
			}
			if v, ok := r.PostForm["cleartext_password"]; ok {
				u["password"] = "$hashed$" + v[0]
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			s.users = without(s.users, u)
			w.WriteHeader(http.StatusNoContent)
		}
		return
	}
	switch segs[1] {
	case "addresses":
		if r.Method == http.MethodPost {
			email := strings.ToLower(r.PostForm.Get("email"))
			if s.findLocked(s.addresses, "email", email) != nil {
				writeError(w, http.StatusBadRequest, "Address already exists")
				return
			}
			a := s.addAddressLocked(email, r.PostForm.Get("display_name"), u["self_link"].(string))
			writeCreated(w, a)
			return
		}
		var out []map[string]any
		for _, a := range s.addresses {
			if a["user"] == u["self_link"] {
				out = append(out, a)
			}
		}
		writeCollection(w, out)
	case "preferences":
		s.servePreferences(w, r, userPath)
	default:
		writeError(w, http.StatusNotFound, "")
	}
}

func (s *Server) serveAddresses(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) == 0 {
		writeCollection(w, s.addresses)
		return
	}
	email := strings.ToLower(segs[0])
	a := s.findLocked(s.addresses, "email", email)
	if a == nil {
		writeError(w, http.StatusNotFound, "")
		return
	}
	if len(segs) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, a)
		case http.MethodDelete:
			s.addresses = without(s.addresses, a)
			w.WriteHeader(http.StatusNoContent)
		}
		return
	}
	switch segs[1] {
	case "verify":
		a["verified_on"] = time.Now().UTC().Format("2006-01-02T15:04:05.999999")
		w.WriteHeader(http.StatusNoContent)
	case "unverify":
		delete(a, "verified_on")
		w.WriteHeader(http.StatusNoContent)
	case "preferences":
		s.servePreferences(w, r, "addresses/"+email)
	default:
		writeError(w, http.StatusNotFound, "")
	}
}

func (s *Server) serveMembers(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeCollection(w, s.members)
		case http.MethodPost:
			role := r.PostForm.Get("role")
			if role == "" {
				role = "member"
			}
			m, status := s.addMemberLocked(r.PostForm.Get("list_id"), r.PostForm.Get("subscriber"), role)
			if status != http.StatusCreated {
				writeError(w, status, "Member already subscribed")
				return
			}
			if v := r.PostForm.Get("delivery_mode"); v != "" {
				m["delivery_mode"] = v
			}
			writeCreated(w, m)
		}
		return
	}
	if segs[0] == "find" {
		q := r.URL.Query()
		for k, v := range r.PostForm {
			q[k] = v
		}
		writeCollection(w, s.filterMembersLocked(q.Get("list_id"), q.Get("subscriber"), q.Get("role")))
		return
	}
	m := s.findLocked(s.members, "member_id", segs[0])
	if m == nil {
		writeError(w, http.StatusNotFound, "")
		return
	}
	if len(segs) == 2 && segs[1] == "preferences" {
		s.servePreferences(w, r, "members/"+segs[0])
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, m)
	case http.MethodPatch:
		for _, key := range []string{"address", "delivery_mode", "moderation_action"} {
			if v, ok := r.PostForm[key]; ok {
				m[key] = v[0]
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		s.members = without(s.members, m)
		w.WriteHeader(http.StatusNoContent)
	}
}

var preferenceKeys = map[string]bool{
	"acknowledge_posts":    true,
	"delivery_mode":        true,
	"delivery_status":      true,
	"hide_address":         true,
	"preferred_language":   true,
	"receive_list_copy":    true,
	"receive_own_postings": true,
}

func (s *Server) servePreferences(w http.ResponseWriter, r *http.Request, owner string) {
	prefs, ok := s.prefs[owner]
	if !ok {
		prefs = make(map[string]any)
		s.prefs[owner] = prefs
	}
	switch r.Method {
	case http.MethodGet:
		out := map[string]any{"self_link": s.link(owner + "/preferences")}
		for k, v := range prefs {
			out[k] = v
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPut, http.MethodPatch:
		for key := range r.PostForm {
			if !preferenceKeys[key] {
				writeError(w, http.StatusBadRequest, "Unexpected parameters: "+key)
				return
			}
		}
		if r.Method == http.MethodPut {
			for k := range prefs {
				delete(prefs, k)
			}
		}
		for key, values := range r.PostForm {
			prefs[key] = decodeForm(values[0])
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "")
	}
}

// readOnly 远端拒绝修改的列表配置字段
var readOnly = func() map[string]bool {
	out := map[string]bool{"self_link": true}
	for _, attr := range domain.ListReadOnlyAttrs {
		out[attr] = true
	}
	return out
}()

func (s *Server) addDomainLocked(host, baseURL, description string) map[string]any {
	d := map[string]any{
		"mail_host":   host,
		"base_url":    baseURL,
		"description": description,
		"url_host":    strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://"),
		"self_link":   s.link("domains/" + host),
	}
	s.domains = append(s.domains, d)
	return d
}

func (s *Server) addListLocked(fqdn string, createDomain bool) (map[string]any, int) {
	name, host, ok := strings.Cut(fqdn, "@")
	if !ok || name == "" || host == "" {
		return nil, http.StatusBadRequest
	}
	if s.findLocked(s.domains, "mail_host", host) == nil {
		if !createDomain {
			return nil, http.StatusBadRequest
		}
		s.addDomainLocked(host, "http://"+host, "")
	}
	if s.findLocked(s.lists, "fqdn_listname", fqdn) != nil {
		return nil, http.StatusBadRequest
	}
	listID := name + "." + host
	l := map[string]any{
		"fqdn_listname": fqdn,
		"list_id":       listID,
		"list_name":     name,
		"mail_host":     host,
		"display_name":  strings.ToUpper(name[:1]) + name[1:],
		"member_count":  0,
		"volume":        1,
		"self_link":     s.link("lists/" + listID),
	}
	s.lists = append(s.lists, l)
	s.configs[listID] = map[string]any{
		"self_link":             s.link("lists/" + listID + "/config"),
		"fqdn_listname":         fqdn,
		"list_name":             name,
		"list_id":               listID,
		"mail_host":             host,
		"display_name":          l["display_name"],
		"description":           "",
		"advertised":            true,
		"archive_policy":        "public",
		"subject_prefix":        "[" + l["display_name"].(string) + "] ",
		"posting_address":       fqdn,
		"join_address":          name + "-join@" + host,
		"leave_address":         name + "-leave@" + host,
		"owner_address":         name + "-owner@" + host,
		"request_address":       name + "-request@" + host,
		"bounces_address":       name + "-bounces@" + host,
		"no_reply_address":      "noreply@" + host,
		"volume":                1,
		"next_digest_number":    1,
		"post_id":               1,
		"digest_size_threshold": 30.0,
		"send_welcome_message":  true,
		"default_member_action": "defer",
	}
	return l, http.StatusCreated
}

func (s *Server) lookupListLocked(key string) map[string]any {
	if l := s.findLocked(s.lists, "list_id", key); l != nil {
		return l
	}
	return s.findLocked(s.lists, "fqdn_listname", key)
}

func (s *Server) addUserLocked(email, displayName string) (map[string]any, bool) {
	email = strings.ToLower(email)
	if existing := s.findLocked(s.addresses, "email", email); existing != nil {
		if existing["user"] != nil {
			return nil, false
		}
	}
	s.nextUser++
	id := strconv.Itoa(s.nextUser)
	u := map[string]any{
		"user_id":         id,
		"display_name":    displayName,
		"created_on":      time.Now().UTC().Format("2006-01-02T15:04:05.999999"),
		"is_server_owner": false,
		"self_link":       s.link("users/" + id),
	}
	s.users = append(s.users, u)
	if a := s.findLocked(s.addresses, "email", email); a != nil {
		a["user"] = u["self_link"]
	} else {
		s.addAddressLocked(email, displayName, u["self_link"].(string))
	}
	return u, true
}

func (s *Server) addAddressLocked(email, displayName, userLink string) map[string]any {
	a := map[string]any{
		"email":          email,
		"original_email": email,
		"display_name":   displayName,
		"registered_on":  time.Now().UTC().Format("2006-01-02T15:04:05.999999"),
		"self_link":      s.link("addresses/" + email),
	}
	if userLink != "" {
		a["user"] = userLink
	}
	s.addresses = append(s.addresses, a)
	return a
}

func (s *Server) addMemberLocked(listID, subscriber, role string) (map[string]any, int) {
	l := s.lookupListLocked(listID)
	if l == nil {
		return nil, http.StatusBadRequest
	}
	listID = l["list_id"].(string)
	subscriber = strings.ToLower(subscriber)
	if len(s.filterMembersLocked(listID, subscriber, role)) > 0 {
		return nil, http.StatusConflict
	}
	a := s.findLocked(s.addresses, "email", subscriber)
	if a == nil {
		if _, ok := s.addUserLocked(subscriber, ""); !ok {
			return nil, http.StatusBadRequest
		}
		a = s.findLocked(s.addresses, "email", subscriber)
	}
	s.nextMem++
	id := strconv.Itoa(s.nextMem)
	m := map[string]any{
		"address":       subscriber,
		"email":         subscriber,
		"list_id":       listID,
		"role":          role,
		"member_id":     id,
		"delivery_mode": "regular",
		"self_link":     s.link("members/" + id),
	}
	if a["user"] != nil {
		m["user"] = a["user"]
	}
	s.members = append(s.members, m)
	return m, http.StatusCreated
}

func (s *Server) filterMembersLocked(listID, subscriber, role string) []map[string]any {
	var out []map[string]any
	for _, m := range s.members {
		if listID != "" && m["list_id"] != listID {
			continue
		}
		if subscriber != "" && m["address"] != strings.ToLower(subscriber) {
			continue
		}
		if role != "" && m["role"] != role {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Server) findLocked(items []map[string]any, key string, value any) map[string]any {
	for _, item := range items {
		if item[key] == value {
			return item
		}
	}
	return nil
}

func without(items []map[string]any, drop map[string]any) []map[string]any {
	out := items[:0:0]
	for _, item := range items {
		if fmt.Sprint(item["self_link"]) != fmt.Sprint(drop["self_link"]) {
			out = append(out, item)
		}
	}
	return out
}

func decodeForm(v string) any {
	switch v {
	case "true", "True":
		return true
	case "false", "False":
		return false
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && !strings.ContainsAny(v, "+-") {
		return n
	}
	return v
}

func writeCreated(w http.ResponseWriter, obj map[string]any) {
	w.Header().Set("Location", fmt.Sprint(obj["self_link"]))
	w.WriteHeader(http.StatusCreated)
}

func writeCollection(w http.ResponseWriter, items []map[string]any) {
	entries := make([]any, 0, len(items))
	for _, item := range items {
		entries = append(entries, item)
	}
	body := map[string]any{"start": 0, "total_size": len(items)}
	if len(items) > 0 {
		body["entries"] = entries
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"title": http.StatusText(status), "description": msg})
}

// SortedKeys 返回对象的键，按字典序排列
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
