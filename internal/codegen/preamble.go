package codegen

const systemInstruction = "You are a Manim code generator. Given a prompt, return valid Python 3 code " +
	"wrapped in triple backticks (```python). Do not explain the code. " +
	"The name of the class should always be Main. " +
	"Summarize the generated code in one or two sentences explaining its functionality. " +
	"Wrap the summary in triple backticks (```text)."

var preamble = []Turn{
	{Role: RoleSystem, Text: systemInstruction},
	{Role: RoleUser, Text: "Draw a red triangle and rotate it 90 degrees"},
	{Role: RoleAssistant, Text: "```python\n" +
		"from manim import *\n\n" +
		"class Main(Scene):\n" +
		"    def construct(self):\n" +
		"        triangle = Triangle(color=RED)\n" +
		"        self.play(Create(triangle))\n" +
		"        self.play(Rotate(triangle, angle=PI/2))\n" +
		"        self.wait()\n" +
		"```\n" +
		"```text\n" +
		"This code creates a red triangle and rotates it 90 degrees.\n" +
		"```"},
	{Role: RoleUser, Text: "Transform a circle to a square"},
	{Role: RoleAssistant, Text: "```python\n" +
		"from manim import *\n\n" +
		"class Main(Scene):\n" +
		"    def construct(self):\n" +
		"        circle = Circle(color=BLUE)\n" +
		"        square = Square(color=BLUE)\n" +
		"        self.play(Create(circle))\n" +
		"        self.wait(1)\n" +
		"        self.play(Transform(circle, square))\n" +
		"        self.wait(2)\n" +
		"```\n" +
		"```text\n" +
		"This code transforms a blue circle into a blue square.\n" +
		"```"},
}

// Preamble returns the fixed instruction and worked examples sent ahead of
// every conversation.
func Preamble() []Turn {
	out := make([]Turn, len(preamble))
	copy(out, preamble)
	return out
}
