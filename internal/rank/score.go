package rank

import "math"

// 文档注释：距离衰减得分 supply / (1 + alpha * d^beta)
// 约束：d 以英里计；alpha == 0 时精确返回 supply；beta 的合法性由 Params.Validate 保证，此处不再检查。
func Score(supply, distanceMi, alpha, beta float64) float64 {
	if alpha == 0 {
		return supply
	}
	return supply / (1 + alpha*math.Pow(distanceMi, beta))
}
