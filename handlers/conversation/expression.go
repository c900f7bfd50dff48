package conversation

import "strings"

// Avatar expressions hinted with each message.
const (
	ExpressionDefault = "default"
	ExpressionLove    = "love"
	ExpressionAngry   = "angry"
	ExpressionExcited = "excited"
	ExpressionHappy   = "happy"
	ExpressionSad     = "sad"
)

type expressionRule struct {
	expression string
	keywords   []string
}

// Checked in order; the first rule with a matching keyword wins.
var expressionRules = []expressionRule{
	{ExpressionLove, []string{"love", "heart", "cute", "adorable", "yêu", "thương", "dễ thương", "đáng yêu", "❤️", "💕", "💖"}},
	{ExpressionAngry, []string{"angry", "mad", "furious", "annoyed", "giận", "tức", "bực", "khó chịu"}},
	{ExpressionExcited, []string{"amazing", "incredible", "wow", "fantastic", "tuyệt vời", "thú vị", "hứng thú", "tuyệt cú mèo", "quá đỉnh"}},
	{ExpressionHappy, []string{"happy", "good", "great", "awesome", "wonderful", "excellent", "vui", "tốt", "tuyệt", "hay", "giỏi", "đẹp"}},
	{ExpressionSad, []string{"sad", "bad", "terrible", "awful", "buồn", "tệ", "khủng khiếp", "không tốt", "thất vọng"}},
}

// Expression picks the avatar expression for a message by keyword sentiment.
func Expression(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range expressionRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.expression
			}
		}
	}
	return ExpressionDefault
}
