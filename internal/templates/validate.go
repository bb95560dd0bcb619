package templates

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	colorRe        = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	categoryNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,39}$`)
	callValueRe    = regexp.MustCompile(`^\+?[0-9][0-9-]{5,19}$`)
)

// ValidateTemplate checks content, length budget, image and RCS rules for t's message type.
func ValidateTemplate(t *Template) error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "title is required")
	}
	if !t.MessageType.Valid() {
		return invalid("messageType", "must be one of SMS, LMS, MMS, RCS")
	}
	if strings.TrimSpace(t.Content) == "" {
		return invalid("content", "content is required")
	}
	if n, limit := ByteLength(t.Content), t.MessageType.ByteLimit(); n > limit {
		return invalid("content", fmt.Sprintf("%d bytes exceeds the %s limit of %d", n, t.MessageType, limit))
	}
	if t.MessageType.RequiresImage() && strings.TrimSpace(t.ImageRef) == "" {
		return invalid("imageRef", string(t.MessageType)+" templates require an image")
	}
	if t.RCSOptions != nil {
		if t.MessageType != TypeRCS {
			return invalid("rcsOptions", "rich card options are only valid on RCS templates")
		}
		if err := validateRCS(t.RCSOptions); err != nil {
			return err
		}
	}
	return nil
}

func validateRCS(o *RCSOptions) error {
	switch o.CardType {
	case CardStandalone, CardCarousel:
	case "":
		o.CardType = CardStandalone
	default:
		return invalid("rcsOptions.cardType", "must be standalone or carousel")
	}
	if len(o.Buttons) > MaxRCSButtons {
		return invalid("rcsOptions.buttons", fmt.Sprintf("at most %d buttons are allowed", MaxRCSButtons))
	}
	for i, b := range o.Buttons {
		field := fmt.Sprintf("rcsOptions.buttons[%d]", i)
		if strings.TrimSpace(b.Label) == "" {
			return invalid(field+".label", "label is required")
		}
		value := strings.TrimSpace(b.Value)
		switch b.Action {
		case ButtonURL:
			if !strings.HasPrefix(value, "https://") && !strings.HasPrefix(value, "http://") {
				return invalid(field+".value", "url buttons need an http(s) link")
			}
		case ButtonCall:
			if !callValueRe.MatchString(value) {
				return invalid(field+".value", "call buttons need a phone number")
			}
		default:
			return invalid(field+".action", "must be url or call")
		}
	}
	if o.CardType == CardCarousel && len(o.Thumbnails) < 2 {
		return invalid("rcsOptions.thumbnails", "carousel cards need at least 2 thumbnails")
	}
	for i, th := range o.Thumbnails {
		if strings.TrimSpace(th) == "" {
			return invalid(fmt.Sprintf("rcsOptions.thumbnails[%d]", i), "thumbnail reference is empty")
		}
	}
	if pi := o.ProductInfo; pi != nil {
		if strings.TrimSpace(pi.Name) == "" {
			return invalid("rcsOptions.productInfo.name", "name is required")
		}
		if pi.Price < 0 {
			return invalid("rcsOptions.productInfo.price", "price cannot be negative")
		}
	}
	return nil
}

// ValidateCategory checks the slug name, display name and color.
func ValidateCategory(c *Category) error {
	if !categoryNameRe.MatchString(c.Name) {
		return invalid("name", "use lowercase letters, digits, - or _ (max 40)")
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		return invalid("displayName", "display name is required")
	}
	if !colorRe.MatchString(c.Color) {
		return invalid("color", "color must be #RRGGBB")
	}
	return nil
}
