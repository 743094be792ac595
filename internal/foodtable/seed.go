package foodtable

// Seed returns the built-in dataset used when no food table exists yet.
// Values are per 100 g edible portion, averaged from USDA FoodData Central
// and other public tables; they are demo data, not a clinical reference.
func Seed() []Record {
	return []Record{
		{Name: "苹果", Category: "水果", Calories: 52, Protein: 0.3, Carbs: 14, Fat: 0.2, Fiber: 2.4, VitaminC: 4.6, Calcium: 6, Iron: 0.1},
		{Name: "香蕉", Category: "水果", Calories: 89, Protein: 1.1, Carbs: 23, Fat: 0.3, Fiber: 2.6, VitaminC: 8.7, Calcium: 5, Iron: 0.3},
		{Name: "橙子", Category: "水果", Calories: 47, Protein: 0.9, Carbs: 12, Fat: 0.1, Fiber: 2.4, VitaminC: 53.2, Calcium: 40, Iron: 0.1},
		{Name: "草莓", Category: "水果", Calories: 32, Protein: 0.7, Carbs: 8, Fat: 0.3, Fiber: 2, VitaminC: 58.8, Calcium: 16, Iron: 0.4},
		{Name: "葡萄", Category: "水果", Calories: 69, Protein: 0.7, Carbs: 18, Fat: 0.2, Fiber: 0.9, VitaminC: 3.2, Calcium: 10, Iron: 0.4},
		{Name: "鸡胸肉", Category: "肉类", Calories: 165, Protein: 31, Carbs: 0, Fat: 3.6, Fiber: 0, VitaminC: 0, Calcium: 15, Iron: 1.0},
		{Name: "牛肉", Category: "肉类", Calories: 250, Protein: 26, Carbs: 0, Fat: 15, Fiber: 0, VitaminC: 0, Calcium: 18, Iron: 2.6},
		{Name: "鱼肉", Category: "肉类", Calories: 206, Protein: 22, Carbs: 0, Fat: 12, Fiber: 0, VitaminC: 0, Calcium: 25, Iron: 0.8},
		{Name: "鸡蛋", Category: "蛋类", Calories: 155, Protein: 13, Carbs: 1.1, Fat: 11, Fiber: 0, VitaminC: 0, Calcium: 56, Iron: 1.8},
		{Name: "牛奶", Category: "乳制品", Calories: 42, Protein: 3.4, Carbs: 5, Fat: 1, Fiber: 0, VitaminC: 0, Calcium: 113, Iron: 0.03},
		{Name: "大米", Category: "谷物", Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3, Fiber: 0.4, VitaminC: 0, Calcium: 28, Iron: 0.8},
		{Name: "全麦面包", Category: "谷物", Calories: 247, Protein: 13, Carbs: 41, Fat: 3.4, Fiber: 7, VitaminC: 0, Calcium: 54, Iron: 3.6},
		{Name: "燕麦", Category: "谷物", Calories: 68, Protein: 2.4, Carbs: 12, Fat: 1.4, Fiber: 4, VitaminC: 0, Calcium: 52, Iron: 1.3},
		{Name: "红薯", Category: "蔬菜", Calories: 86, Protein: 12, Carbs: 20, Fat: 0.1, Fiber: 3, VitaminC: 2.4, Calcium: 30, Iron: 0.6},
		{Name: "西兰花", Category: "蔬菜", Calories: 34, Protein: 2.8, Carbs: 7, Fat: 0.4, Fiber: 2.6, VitaminC: 89.2, Calcium: 47, Iron: 0.7},
		{Name: "胡萝卜", Category: "蔬菜", Calories: 41, Protein: 0.9, Carbs: 10, Fat: 0.2, Fiber: 2.8, VitaminC: 5.9, Calcium: 33, Iron: 0.3},
		{Name: "菠菜", Category: "蔬菜", Calories: 23, Protein: 2.9, Carbs: 3.6, Fat: 0.4, Fiber: 2.2, VitaminC: 28.1, Calcium: 99, Iron: 2.7},
		{Name: "西红柿", Category: "蔬菜", Calories: 18, Protein: 0.9, Carbs: 3.9, Fat: 0.2, Fiber: 1.2, VitaminC: 13.7, Calcium: 10, Iron: 0.3},
		{Name: "黄瓜", Category: "蔬菜", Calories: 16, Protein: 0.7, Carbs: 3.6, Fat: 0.1, Fiber: 0.5, VitaminC: 2.8, Calcium: 16, Iron: 0.3},
		{Name: "豆腐", Category: "豆制品", Calories: 76, Protein: 8, Carbs: 1.9, Fat: 4.8, Fiber: 0.3, VitaminC: 0, Calcium: 350, Iron: 5.4},
	}
}
