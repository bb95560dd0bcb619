// Package templates manages reusable message templates and the categories that group them.
package templates

import (
	"time"
)

// MessageType is the carrier message class; it decides the length budget.
type MessageType string

const (
	TypeSMS MessageType = "SMS"
	TypeLMS MessageType = "LMS"
	TypeMMS MessageType = "MMS"
	TypeRCS MessageType = "RCS"
)

func (t MessageType) Valid() bool {
	switch t {
	case TypeSMS, TypeLMS, TypeMMS, TypeRCS:
		return true
	}
	return false
}

// ByteLimit is the carrier byte budget for the type, 0 for unknown types.
func (t MessageType) ByteLimit() int {
	switch t {
	case TypeSMS:
		return 90
	case TypeLMS, TypeMMS:
		return 2000
	case TypeRCS:
		return 1300
	}
	return 0
}

// RequiresImage reports whether the type must carry an image.
func (t MessageType) RequiresImage() bool {
	return t == TypeMMS || t == TypeRCS
}

type CardType string

const (
	CardStandalone CardType = "standalone"
	CardCarousel   CardType = "carousel"
)

type ButtonAction string

const (
	ButtonURL  ButtonAction = "url"
	ButtonCall ButtonAction = "call"
)

const MaxRCSButtons = 4

type RCSButton struct {
	Label  string       `json:"label"`
	Action ButtonAction `json:"action"`
	Value  string       `json:"value"`
}

type ProductInfo struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description,omitempty"`
}

// RCSOptions holds rich-card settings; only valid on RCS templates.
type RCSOptions struct {
	CardType    CardType     `json:"cardType"`
	Buttons     []RCSButton  `json:"buttons,omitempty"`
	Thumbnails  []string     `json:"thumbnails,omitempty"`
	ProductInfo *ProductInfo `json:"productInfo,omitempty"`
}

type Template struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	CategoryID  string      `json:"categoryId"`
	MessageType MessageType `json:"messageType"`
	ImageRef    string      `json:"imageRef,omitempty"`
	RCSOptions  *RCSOptions `json:"rcsOptions,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Category groups templates. Exactly one category is the default at any time.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Color       string    `json:"color"`
	IsDefault   bool      `json:"isDefault"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := *t
	if t.RCSOptions != nil {
		o := *t.RCSOptions
		o.Buttons = append([]RCSButton(nil), t.RCSOptions.Buttons...)
		o.Thumbnails = append([]string(nil), t.RCSOptions.Thumbnails...)
		if t.RCSOptions.ProductInfo != nil {
			pi := *t.RCSOptions.ProductInfo
			o.ProductInfo = &pi
		}
		c.RCSOptions = &o
	}
	return &c
}

func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

// ByteLength counts carrier bytes: one per ASCII character, two for anything else.
func ByteLength(s string) int {
	n := 0
	for _, r := range s {
		if r < 0x80 {
			n++
		} else {
			n += 2
		}
	}
	return n
}

func (o *RCSOptions) clone() *RCSOptions {
	if o == nil {
		return nil
	}
	return (&Template{RCSOptions: o}).Clone().RCSOptions
}
