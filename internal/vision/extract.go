package vision

import (
	"context"
	"fmt"
	"strings"
)

// extractionPrompt asks the vision model for ingredient names only.
const extractionPrompt = `Extract all text from this image of a food ingredient list. Return a clean, comma-separated list of the ingredients. Ignore any non-ingredient text. Only return the ingredient names, nothing else.`

// ExtractIngredients runs the vision call against a scan image and returns
// the ingredient names the model read off the label.
func ExtractIngredients(ctx context.Context, gen Generator, imageData []byte, contentType string) ([]string, error) {
	text, err := gen.Generate(ctx, extractionPrompt, &ImageInput{
		Data:        imageData,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting ingredients: %w", err)
	}

	ingredients := ParseIngredientList(text)
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("no ingredients found in image")
	}
	return ingredients, nil
}

// ParseIngredientList splits a comma-separated model response into ingredient
// names. Whitespace is trimmed and empty fragments dropped; order and
// duplicates are preserved.
func ParseIngredientList(text string) []string {
	parts := strings.Split(text, ",")
	ingredients := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			ingredients = append(ingredients, name)
		}
	}
	return ingredients
}
