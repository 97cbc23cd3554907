// examples.go - Beispiel-Galerien des Web-UI
// Jeder Eintrag belegt Referenzbilder, Aufgaben, Prompt und Seed vor.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/dreamo-go/dreamo/api"
)

// Examples gibt die Galerien in Anzeige-Reihenfolge zurueck
func Examples() *api.Galleries {
	g := orderedmap.New[string, []api.Example]()

	g.Set("IP task", []api.Example{
		single("woman1.png", "ip", "profile shot dark photo of a 25-year-old female with smoke escaping from her mouth, the backlit smoke gives the image an ephemeral quality, natural face, natural eyebrows, natural skin texture, award winning photo, highly detailed face, atmospheric lighting, film grain, monochrome", "9180879731249039735"),
		single("man1.png", "ip", "a man sitting on the cloud, playing guitar", "1206523688721442817"),
		single("toy1.png", "ip", `a purple toy holding a sign saying "DreamO", on the mountain`, "10441727852953907380"),
		single("perfume.png", "ip", "a perfume under spotlight", "116150031980664704"),
	})

	g.Set("ID task (similar to PuLID, will only refer to the face)", []api.Example{
		single("hinton.jpeg", "id", "portrait, Chibi", "5443415087540486371"),
	})

	g.Set("Style task", []api.Example{
		single("mickey.png", "style", "generate a same style image. A rooster wearing overalls.", "6245580464677124951"),
		single("mountain.png", "style", "generate a same style image. A pavilion by the river, and the distant mountains are endless", "5248066378927500767"),
	})

	g.Set("Try-On task", []api.Example{
		pair("shirt.png", "skirt.jpeg", "ip", "ip", "A girl is wearing a short-sleeved shirt and a short skirt on the beach.", "9514069256241143615"),
		pair("woman2.png", "dress.png", "id", "ip", "the woman wearing a dress, In the banquet hall", "7698454872441022867"),
	})

	g.Set("Multi IP", []api.Example{
		pair("dog1.png", "dog2.png", "ip", "ip", "two dogs in the jungle", "6187006025405083344"),
		pair("woman3.png", "cat.png", "ip", "ip", "A girl rides a giant cat, walking in the noisy modern city. High definition, realistic, non-cartoonish. Excellent photography work, 8k high definition.", "11980469406460273604"),
		pair("man2.jpeg", "woman4.jpeg", "ip", "ip", "a man is dancing with a woman in the room", "8303780338601106219"),
	})

	return g
}

func single(image, task, prompt, seed string) api.Example {
	return api.Example{Images: []string{image}, Tasks: []string{task}, Prompt: prompt, Seed: seed}
}

func pair(image1, image2, task1, task2, prompt, seed string) api.Example {
	return api.Example{Images: []string{image1, image2}, Tasks: []string{task1, task2}, Prompt: prompt, Seed: seed}
}

// ExamplesHandler liefert die Galerien als JSON (Reihenfolge bleibt erhalten)
func (s *Server) ExamplesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.ExamplesResponse{Galleries: s.galleries})
}
