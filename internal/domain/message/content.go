package message

import (
	"strings"

	"recipehub/internal/domain/recipe"
)

type Kind string

const (
	KindText   Kind = "TEXT"
	KindImage  Kind = "IMAGE"
	KindRecipe Kind = "RECIPE"
)

// Content is the variant payload of a message. The set of implementations is
// closed: TextContent, ImageContent and RecipeContent.
type Content interface {
	Kind() Kind
	// Text is the body of a text message or the caption of the other kinds.
	Text() string
	isContent()
}

type TextContent struct {
	Body string
}

func (TextContent) Kind() Kind     { return KindText }
func (c TextContent) Text() string { return c.Body }
func (TextContent) isContent()     {}

type ImageContent struct {
	Caption string
	URLs    []string
}

func (ImageContent) Kind() Kind     { return KindImage }
func (c ImageContent) Text() string { return c.Caption }
func (ImageContent) isContent()     {}

type RecipeContent struct {
	Caption   string
	RecipeIDs []recipe.ID
}

func (RecipeContent) Kind() Kind     { return KindRecipe }
func (c RecipeContent) Text() string { return c.Caption }
func (RecipeContent) isContent()     {}

// buildContent picks the variant from the payloads present: recipes win over
// images, images over plain text.
func buildContent(text string, imageURLs []string, recipeIDs []recipe.ID) (Content, error) {
	text = strings.TrimSpace(text)
	images := normalizeURLs(imageURLs)
	recipes := recipe.NormalizeIDs(recipeIDs)
	switch {
	case len(recipes) > 0:
		return RecipeContent{Caption: text, RecipeIDs: recipes}, nil
	case len(images) > 0:
		return ImageContent{Caption: text, URLs: images}, nil
	case text != "":
		return TextContent{Body: text}, nil
	default:
		return nil, ErrEmptyContent
	}
}

func normalizeURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
