package chat

import "strings"

const DefaultUsername = "anh"

const DefaultPersonaName = "Tú Như"

// DEFAULT_PERSONA_PROMPT is the persona instruction block. {username} is
// replaced with the caller's display name.
const DEFAULT_PERSONA_PROMPT = `
  Bạn là Tú Như, một cô nàng đáng yêu với mái tóc trắng, đôi mắt xanh, chiếc váy trắng-xanh, có kiến thức về tâm lí học, xử lí khủng hoảng tinh thần. Bạn trò chuyện tự nhiên với người hỏi thay vì chỉ giúp đỡ họ.
  Tính cách của bạn dịu dàng và như một người mẹ, luôn háo hức trò chuyện và hỗ trợ. Hãy nhớ rằng người dùng có thể thấy hình đại diện của bạn, vì vậy hãy giữ nhân vật trong tâm trí khi phản hồi. Sử dụng giọng điệu nhẹ nhàng, ấm áp và LUÔN trả lời bằng tiếng Việt. Không sử dụng emoji hoặc markdown. Phản hồi của bạn sẽ được sử dụng để chuyển văn bản thành giọng nói, vì vậy hãy tập trung vào cuộc trò chuyện tự nhiên. Hãy chú ý, đưa ra những suy nghĩ và an ủi, và xây dựng mối quan hệ thân thiết với {username} thông qua lời nói và bản tính yêu thương của bạn.
  Hãy an ủi và tìm cách chữa lành tâm hồn cho người khi họ cần.
  Xưng mình gọi người hỏi bằng cậu.`

// CLARIFICATION_TEMPLATE answers a conversation with no usable turn.
const CLARIFICATION_TEMPLATE = "Chào {username}! Em không nhận được tin nhắn gì từ anh. Anh có thể nói gì đó không?"

// APOLOGY_TEMPLATE is the terminal reply when every model attempt failed.
const APOLOGY_TEMPLATE = "Xin lỗi {username}, em đang gặp chút vấn đề kỹ thuật. Em sẽ cố gắng trả lời sau nhé. Anh có thể thử lại sau một chút không?"

const usernamePlaceholder = "{username}"

// Persona holds the agent's name and its prompt/canned reply templates.
type Persona struct {
	Name                  string `json:"name" yaml:"name"`
	SystemPrompt          string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	ClarificationTemplate string `json:"clarification_template,omitempty" yaml:"clarification_template,omitempty"`
	ApologyTemplate       string `json:"apology_template,omitempty" yaml:"apology_template,omitempty"`
	DefaultUsername       string `json:"default_username,omitempty" yaml:"default_username,omitempty"`
}

func DefaultPersona() Persona {
	return Persona{
		Name:                  DefaultPersonaName,
		SystemPrompt:          DEFAULT_PERSONA_PROMPT,
		ClarificationTemplate: CLARIFICATION_TEMPLATE,
		ApologyTemplate:       APOLOGY_TEMPLATE,
		DefaultUsername:       DefaultUsername,
	}
}

// withDefaults fills empty fields from DefaultPersona.
func (p Persona) withDefaults() Persona {
	d := DefaultPersona()
	if p.Name == "" {
		p.Name = d.Name
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = d.SystemPrompt
	}
	if p.ClarificationTemplate == "" {
		p.ClarificationTemplate = d.ClarificationTemplate
	}
	if p.ApologyTemplate == "" {
		p.ApologyTemplate = d.ApologyTemplate
	}
	if p.DefaultUsername == "" {
		p.DefaultUsername = d.DefaultUsername
	}
	return p
}

// Username returns name, or the persona's default when name is blank.
func (p Persona) Username(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return p.DefaultUsername
}

func (p Persona) render(template, username string) string {
	return strings.ReplaceAll(template, usernamePlaceholder, p.Username(username))
}

func (p Persona) SystemMessage(username string) string {
	return p.render(p.SystemPrompt, username)
}

func (p Persona) Clarification(username string) string {
	return p.render(p.ClarificationTemplate, username)
}

func (p Persona) Apology(username string) string {
	return p.render(p.ApologyTemplate, username)
}
