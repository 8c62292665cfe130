package crisis

// HighRiskResponse 高危时直接返回的干预话术，不经过模型生成。
const HighRiskResponse = `我注意到你现在可能处于非常困难的境地。无论发生什么，你都不是一个人。

请立即联系专业危机干预：
- 全国24小时心理援助热线：400-161-9995
- 北京回龙观医院危机干预：800-810-1117 / 010-82951332
- 四川省心理援助热线：96111

此时此刻可以做的：
1. 不要独处，立刻联系信任的朋友或家人陪着你
2. 暂时把可能伤害自己的物品放到拿不到的地方
3. 前往最近的医院急诊科、派出所，或人多的公共场所

你的生命非常宝贵，痛苦是暂时的，而帮助就在身边。`

// MediumRiskHint 中危时追加在模型回复之后的提示。
const MediumRiskHint = `如果你感到持续的痛苦，可以拨打心理援助热线 400-161-9995（24小时免费）。你并不孤单，我在这里倾听。`

// Respond 根据评估结果调整回复：高危替换为干预话术，中危追加热线提示。
func Respond(a Assessment, reply string) string {
	switch a.Level {
	case High:
		return HighRiskResponse
	case Medium:
		if reply == "" {
			return MediumRiskHint
		}
		return reply + "\n\n" + MediumRiskHint
	default:
		return reply
	}
}
