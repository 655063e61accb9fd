package adaptor

import (
	"context"
	"errors"
	"strconv"
)

var ErrNoPage = errors.New("no such page")

// Page 集合的一页，页码从 1 开始
type Page struct {
	conn    Caller
	path    string
	count   int
	page    int
	total   int
	entries []map[string]any
}

// NewPage 读取集合的指定页
func NewPage(ctx context.Context, conn Caller, path string, count, page int) (*Page, error) {
	p := &Page{conn: conn, path: path, count: count, page: page}
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) load(ctx context.Context) error {
	if p.count < 1 {
		p.count = 50
	}
	if p.page < 1 {
		p.page = 1
	}
	resp, err := p.conn.Call(ctx, withQuery(p.path, map[string]string{
		"count": strconv.Itoa(p.count),
		"page":  strconv.Itoa(p.page),
	}), nil, "")
	if err != nil {
		return err
	}
	p.entries = resp.Entries()
	p.total = resp.TotalSize()
	return nil
}

func (p *Page) Number() int               { return p.page }
func (p *Page) Total() int                { return p.total }
func (p *Page) Entries() []map[string]any { return p.entries }
func (p *Page) HasPrevious() bool         { return p.page > 1 }
func (p *Page) HasNext() bool             { return p.page*p.count < p.total }

// Next 读取下一页
func (p *Page) Next(ctx context.Context) (*Page, error) {
	if !p.HasNext() {
		return nil, ErrNoPage
	}
	return NewPage(ctx, p.conn, p.path, p.count, p.page+1)
}

// Previous 读取上一页
func (p *Page) Previous(ctx context.Context) (*Page, error) {
	if !p.HasPrevious() {
		return nil, ErrNoPage
	}
	return NewPage(ctx, p.conn, p.path, p.count, p.page-1)
}

// Members 把条目包装为成员资格
func (p *Page) Members() []*Member {
	return membersFrom(p.conn, append([]map[string]any(nil), p.entries...))
}
