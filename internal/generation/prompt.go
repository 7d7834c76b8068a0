package generation

import "fmt"

// RequiredFields lists the JSON keys the model must emit, in the order the
// prompt enumerates them. Extraction validates the parsed reply against
// this list.
var RequiredFields = []string{
	"brandStory",
	"instagramCaption",
	"facebookCaption",
	"twitterCaption",
	"reelScript",
	"suggestedPrice",
	"tags",
}

const contentPromptFormat = `You are a marketing expert for artisan crafts. Generate compelling marketing content for the following artisan and their craft:

Artisan Name: %s
Craft Description: %s

Please generate:
1. A brand story (2-3 paragraphs)
2. Instagram caption (with emojis, max 150 characters)
3. Facebook post (engaging, max 200 characters)
4. Twitter/X post (concise, max 280 characters)
5. A 30-second reel script
6. Suggested pricing in USD (just the number)
7. 5 trending hashtags (without #)

Format your response as JSON with these keys: brandStory, instagramCaption, facebookCaption, twitterCaption, reelScript, suggestedPrice, tags`

const imagePromptFormat = `Create a beautiful, professional product photo of %s. High quality, well-lit, artistic composition, suitable for e-commerce and social media marketing.`

// BuildContentPrompt builds the instruction string for the text model.
// It is a pure function of its two inputs: no timestamps, no randomness.
// Handlers and tests rely on the output being byte-identical across calls.
func BuildContentPrompt(artisanName, craftDescription string) string {
	return fmt.Sprintf(contentPromptFormat, artisanName, craftDescription)
}

// BuildImagePrompt builds the instruction string for the image model from
// the craft description alone. Also a pure function.
func BuildImagePrompt(craftDescription string) string {
	return fmt.Sprintf(imagePromptFormat, craftDescription)
}
