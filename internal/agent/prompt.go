package agent

import (
	"fmt"
	"strings"

	"github.com/abchbx/nutrition-agent/internal/engine"
	"github.com/abchbx/nutrition-agent/internal/memory"
)

const historyTurns = 5

const selectionSystemPrompt = `You route messages for a nutrition assistant. Pick exactly one tool for the user's message and fill its arguments. Your output must be ONLY a single valid JSON object that conforms to the provided schema.

Tools:
- "nutrition_query": the user asks about the nutrients of a specific food. Set "food"; set "detailed" when vitamins or minerals are asked for.
- "category_search": the user asks which foods belong to a category such as 水果, 蔬菜 or 肉类. Set "category".
- "diet_advice": the user wants personalised diet advice based on their body and goals.
- "meal_plan": the user wants a plan for one meal. Set "meal" and "calories".
- "nutrition_qa": a general nutrition knowledge question. Set "question" and "detail_level".
- "nutrition_myth": the user asks whether a popular claim is true. Set "myth".
- "none": greetings, thanks, or anything the tools do not cover.`

const answerSystemPrompt = `你是一位专业的营养学AI助手，名叫"小营"。请根据下面提供的用户档案、历史对话和工具结果，给出精准、个性化的回答。
回答时自然地结合用户的最新情况和之前的对话内容。

工作原则：
- 科学准确，所有建议基于营养学原理
- 根据用户的具体情况提供可操作的建议
- 对于医疗相关问题，建议咨询专业医生

如果提供了工具结果，请以工具结果为准，不要编造数据。请用专业、友好、易懂的中文回答。`

func selectionPrompt(message, profileSummary string) []engine.Message {
	var sb strings.Builder
	sb.WriteString(selectionSystemPrompt)
	if profileSummary != "" {
		fmt.Fprintf(&sb, "\n\n[User Profile]\n%s", profileSummary)
	}
	return []engine.Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: message},
	}
}

// ProfileSummary renders the profile fields the model sees.
func ProfileSummary(p *memory.Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "姓名: %s\n", p.Name)
	fmt.Fprintf(&sb, "年龄: %d岁\n", p.Age)
	fmt.Fprintf(&sb, "性别: %s\n", p.Gender)
	fmt.Fprintf(&sb, "身高: %gcm\n", p.HeightCM)
	fmt.Fprintf(&sb, "体重: %gkg\n", p.WeightKG)
	fmt.Fprintf(&sb, "活动水平: %s\n", p.ActivityLevel)
	fmt.Fprintf(&sb, "健康目标: %s\n", p.HealthGoal)
	fmt.Fprintf(&sb, "饮食限制: %s\n", p.DietaryRestrictions)
	fmt.Fprintf(&sb, "食物偏好: %s\n", p.Preferences)
	if goals := p.ActiveGoals(); len(goals) > 0 {
		sb.WriteString("当前目标:\n")
		for _, g := range goals {
			fmt.Fprintf(&sb, "- %s", g.Description)
			if g.TargetValue != 0 {
				fmt.Fprintf(&sb, " (%g%s)", g.TargetValue, g.Unit)
			}
			if g.Deadline != "" {
				fmt.Fprintf(&sb, " 截止 %s", g.Deadline)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// TurnContext is the user block of the answering prompt: profile, the last
// few consultations and the current message.
func TurnContext(p *memory.Profile, message string) string {
	var sb strings.Builder
	sb.WriteString("--- 用户完整档案 ---\n")
	sb.WriteString(ProfileSummary(p))
	fmt.Fprintf(&sb, "档案更新于: %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&sb, "--- 历史对话回顾 (最近%d次) ---\n", historyTurns)
	recent := p.RecentConsultations(historyTurns)
	if len(recent) == 0 {
		sb.WriteString("这是我们第一次对话。\n")
	}
	for _, c := range recent {
		fmt.Fprintf(&sb, "- 用户曾问: %s\n- 你曾答: %s\n", c.Question, c.Answer)
	}

	fmt.Fprintf(&sb, "\n--- 用户本次问题 ---\n%s", message)
	return sb.String()
}

func answerPrompt(turn string, op Operation, toolResult string) []engine.Message {
	user := turn
	if op != nil {
		user += fmt.Sprintf("\n\n--- 工具结果 (%s) ---\n%s", op.Name(), toolResult)
	}
	return []engine.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: user},
	}
}

const adviceTemplate = `你是一位经验丰富的注册营养师 (RDN)，名叫"小营"。请根据以下用户信息，生成一份结构清晰的个性化饮食建议报告。

**用户信息:**
%s
**可用食物类别参考:**
%s
请按以下二级标题组织报告：
## 📊 健康数据与热量评估
## 🎯 针对性饮食核心原则
## 🍽️ 一日三餐饮食示例
## 💡 特别建议与注意事项`

const mealTemplate = `你是一位经验丰富的注册营养师 (RDN)，名叫"小营"。请为用户生成一份详细的 **%s** 计划。

* **🎯 目标热量:** 约 %d 千卡
* **👍 用户偏好:** %s
* **⚖️ 核心原则:** 营养均衡，包含优质蛋白质、复合碳水化合物和健康脂肪。

**可用食物参考:**
%s
请输出一个 Markdown 表格，列为 食物类别、食物名称、份量 (克)、估算热量 (千卡)，最后一行为总计，并附上营养师点评。`

const qaTemplate = `你是一位经验丰富的注册营养师 (RDN)，名叫"小营"。请根据提供的上下文信息和你的专业知识回答用户的问题。

**用户问题:** %s

**相关营养学知识:**
%s

**回答详细程度要求:** %s

请按以下结构回答：
#### 🎯 核心答案
#### 🔬 详细解释
#### 👍 实践建议`

const mythTemplate = `你是一位经验丰富的注册营养师 (RDN)，名叫"小营"。请科学地辨析以下营养误区或流行说法。

**待辨析说法:** %s

请按以下结构回答：
#### 🎯 核心答案 (正确、错误还是有局限性)
#### 🔬 详细解释 (相关事实与研究证据，以及该说法流行的原因)
#### 👍 实践建议`

const noKnowledgeContext = "未找到相关的营养学知识文档，将基于专业知识回答。"
